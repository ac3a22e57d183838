// Command server runs the bookstore HTTP API and, when Kafka is enabled, the
// rating event consumer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/bookstore/internal/app"
	"github.com/utafrali/bookstore/internal/config"
	"github.com/utafrali/bookstore/pkg/logger"
)

func main() {
	showVersion := flag.Bool("version", false, "print the build version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println(app.Version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("bookstore exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New("bookstore", cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting bookstore",
		slog.String("version", app.Version),
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.Bool("kafka_enabled", cfg.KafkaEnabled),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	if err := application.Run(ctx); err != nil {
		return err
	}

	log.Info("bookstore stopped")
	return nil
}
