package database

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/bookstore/pkg/database"

// QueryTracer is a pgx.QueryTracer that opens a client span per statement and
// logs statements slower than a threshold.
type QueryTracer struct {
	tracer trace.Tracer
	slow   time.Duration
	logger *slog.Logger
	now    func() time.Time
}

var _ pgx.QueryTracer = (*QueryTracer)(nil)

// NewQueryTracer returns a tracer using the global tracer provider. A zero
// slow threshold or nil logger disables slow query logging.
func NewQueryTracer(slow time.Duration, logger *slog.Logger) *QueryTracer {
	return &QueryTracer{
		tracer: otel.Tracer(tracerName),
		slow:   slow,
		logger: logger,
		now:    time.Now,
	}
}

type queryStartKey struct{}

type queryStart struct {
	at        time.Time
	sql       string
	operation string
}

// TraceQueryStart implements pgx.QueryTracer.
func (t *QueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op := sqlOperation(data.SQL)
	ctx, _ = t.tracer.Start(ctx, "db."+strings.ToLower(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemPostgreSQL,
			semconv.DBOperation(op),
			semconv.DBStatement(data.SQL),
			attribute.Int("db.args", len(data.Args)),
		),
	)
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: t.now(), sql: data.SQL, operation: op})
}

// TraceQueryEnd implements pgx.QueryTracer.
func (t *QueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span := trace.SpanFromContext(ctx)
	if data.Err != nil {
		span.RecordError(data.Err)
		span.SetStatus(codes.Error, data.Err.Error())
	} else {
		span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	}
	span.End()

	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok || t.slow <= 0 || t.logger == nil {
		return
	}
	elapsed := t.now().Sub(start.at)
	if elapsed < t.slow {
		return
	}
	attrs := []any{
		slog.String("operation", start.operation),
		slog.String("statement", start.sql),
		slog.Duration("duration", elapsed),
	}
	if data.Err != nil {
		attrs = append(attrs, slog.String("error", data.Err.Error()))
	}
	t.logger.WarnContext(ctx, "slow query detected", attrs...)
}

// sqlOperation returns the leading keyword of a statement, upper-cased.
func sqlOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	return strings.ToUpper(fields[0])
}
