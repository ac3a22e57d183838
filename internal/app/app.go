package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/bookstore/internal/auth"
	"github.com/utafrali/bookstore/internal/config"
	"github.com/utafrali/bookstore/internal/event"
	handler "github.com/utafrali/bookstore/internal/handler/http"
	"github.com/utafrali/bookstore/internal/repository/postgres"
	"github.com/utafrali/bookstore/internal/service"
	"github.com/utafrali/bookstore/migrations"
	"github.com/utafrali/bookstore/pkg/database"
	"github.com/utafrali/bookstore/pkg/health"
	pkgkafka "github.com/utafrali/bookstore/pkg/kafka"
	"github.com/utafrali/bookstore/pkg/middleware"
	"github.com/utafrali/bookstore/pkg/tracing"
)

const (
	serviceName    = "bookstore"
	dedupKeyPrefix = "bookstore:rating-events:"
)

// Version is reported on traces. Release builds set it with
// -ldflags "-X github.com/utafrali/bookstore/internal/app.Version=v1.2.3".
var Version = "dev"

// App wires together all dependencies and runs the bookstore service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumer       *pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, serviceName)

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Credential manager.
	creds, err := auth.NewCredentialManager(auth.Config{
		SigningKey: cfg.JWTSecret,
		TokenTTL:   cfg.JWTTTL,
		BcryptCost: cfg.BcryptCost,
		Issuer:     cfg.JWTIssuer,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init credential manager: %w", err)
	}

	// Build the dependency graph.
	userRepo := postgres.NewUserRepository(pool)
	bookRepo := postgres.NewBookRepository(pool)
	reviewRepo := postgres.NewReviewRepository(pool)

	ratingService := service.NewRatingService(bookRepo, reviewRepo, logger)
	authService := service.NewAuthService(userRepo, creds, logger)
	bookService := service.NewBookService(bookRepo, logger)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	var eventProducer *event.Producer
	if cfg.KafkaEnabled {
		eventProducer = a.initEvents(ctx, ratingService, healthHandler)
	} else {
		logger.Warn("kafka disabled, review events will not be published")
	}

	reviewService := service.NewReviewService(reviewRepo, bookRepo, ratingService, eventProducer, logger)

	// HTTP router.
	router := handler.NewRouter(authService, bookService, reviewService, ratingService, healthHandler, logger, handler.RouterConfig{
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowCredentials: cfg.CORSAllowCredentials,
		},
		PprofAllowedCIDRs:  cfg.PprofAllowedCIDRs,
		AuthRateLimitRPS:   cfg.AuthRateLimitRPS,
		AuthRateLimitBurst: cfg.AuthRateLimitBurst,
		TrustedProxyCIDRs:  cfg.TrustedProxyCIDRs,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// initEvents sets up the review event producer and the rating consumer. The
// consumer dedupes through Redis when it is reachable and falls back to an
// in-memory store otherwise.
func (a *App) initEvents(ctx context.Context, ratings *service.RatingService, healthHandler *health.Handler) *event.Producer {
	cfg := a.cfg

	a.producer = pkgkafka.NewProducer(cfg.KafkaProducer(), a.logger)
	publisher := pkgkafka.NewBreakerPublisher(a.producer, pkgkafka.DefaultBreakerConfig("review-events"), a.logger)
	a.logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return a.producer.Ping(ctx)
	})

	var store pkgkafka.IdempotencyStore
	client, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		a.logger.Warn("redis unavailable, using in-memory event deduplication",
			slog.String("error", err.Error()),
		)
		store = pkgkafka.NewMemoryIdempotencyStore(cfg.EventDedupTTL)
	} else {
		a.redis = client
		store = pkgkafka.NewRedisIdempotencyStore(client, dedupKeyPrefix, cfg.EventDedupTTL)
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		a.logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
	}

	a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, a.logger)
	a.consumer = event.NewRatingConsumer(
		cfg.KafkaBrokers,
		cfg.KafkaConsumerGroup,
		event.NewRatingConsumerHandler(ratings, a.logger),
		store,
		a.logger,
		pkgkafka.WithDeadLetter(a.dlq),
	)

	return event.NewProducer(publisher, a.logger)
}

// Run starts the HTTP server and the rating consumer and blocks until the
// context is canceled or either of them fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.consumer != nil {
		g.Go(func() error {
			return a.consumer.Start(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			a.logger.Info("shutdown signal received")
		}
		return a.Shutdown()
	})

	return g.Wait()
}

// Shutdown gracefully stops all components in order: HTTP server, tracer,
// consumer, Kafka producers, Redis, PostgreSQL.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("kafka dlq producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
