package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return rec
}

// steppedTracer advances its clock by step between start and end.
func steppedTracer(slow, step time.Duration, logger *slog.Logger) *QueryTracer {
	qt := NewQueryTracer(slow, logger)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	qt.now = func() time.Time {
		t := now
		now = now.Add(step)
		return t
	}
	return qt
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

const ratingUpdate = `
		UPDATE books
		SET average_rating = $1, number_of_reviews = $2
		WHERE id = $3`

func TestQueryTracer_SpanPerStatement(t *testing.T) {
	rec := recordSpans(t)
	qt := NewQueryTracer(0, nil)

	ctx := qt.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{
		SQL: ratingUpdate, Args: []any{4.5, 2, "book-1"},
	})
	assert.True(t, trace.SpanFromContext(ctx).SpanContext().IsValid())
	qt.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("UPDATE 1")})

	require.Len(t, rec.Ended(), 1)
	span := rec.Ended()[0]
	assert.Equal(t, "db.update", span.Name())
	assert.Equal(t, trace.SpanKindClient, span.SpanKind())
	assert.Equal(t, codes.Unset, span.Status().Code)

	attrs := spanAttrs(span)
	assert.Equal(t, "postgresql", attrs["db.system"].AsString())
	assert.Equal(t, "UPDATE", attrs["db.operation"].AsString())
	assert.Equal(t, ratingUpdate, attrs["db.statement"].AsString())
	assert.Equal(t, int64(3), attrs["db.args"].AsInt64())
	assert.Equal(t, int64(1), attrs["db.rows_affected"].AsInt64())
}

func TestQueryTracer_ErrorMarksSpan(t *testing.T) {
	rec := recordSpans(t)
	qt := NewQueryTracer(0, nil)

	ctx := qt.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	qt.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("connection refused")})

	require.Len(t, rec.Ended(), 1)
	span := rec.Ended()[0]
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "connection refused", span.Status().Description)
	require.NotEmpty(t, span.Events())
	assert.Equal(t, "exception", span.Events()[0].Name)
}

func TestQueryTracer_ChildOfCaller(t *testing.T) {
	rec := recordSpans(t)
	qt := NewQueryTracer(0, nil)

	ctx, parent := otel.Tracer("test").Start(context.Background(), "rating.recompute")
	qctx := qt.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT COALESCE(SUM(rating), 0), COUNT(*) FROM reviews"})
	qt.TraceQueryEnd(qctx, nil, pgx.TraceQueryEndData{})
	parent.End()

	require.Len(t, rec.Ended(), 2)
	child := rec.Ended()[0]
	assert.Equal(t, parent.SpanContext().SpanID(), child.Parent().SpanID())
	assert.Equal(t, parent.SpanContext().TraceID(), child.SpanContext().TraceID())
}

func TestQueryTracer_SlowQueryLog(t *testing.T) {
	tests := []struct {
		name    string
		slow    time.Duration
		step    time.Duration
		err     error
		logged  bool
		withErr bool
	}{
		{"over threshold", 100 * time.Millisecond, 250 * time.Millisecond, nil, true, false},
		{"exactly threshold", 100 * time.Millisecond, 100 * time.Millisecond, nil, true, false},
		{"under threshold", 100 * time.Millisecond, 10 * time.Millisecond, nil, false, false},
		{"disabled", 0, time.Hour, nil, false, false},
		{"slow failure carries error", time.Millisecond, time.Second, errors.New("canceling statement due to statement timeout"), true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recordSpans(t)
			var buf bytes.Buffer
			qt := steppedTracer(tt.slow, tt.step, slog.New(slog.NewJSONHandler(&buf, nil)))

			ctx := qt.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "select * from books where author ilike $1"})
			qt.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: tt.err})

			if !tt.logged {
				assert.Empty(t, buf.String())
				return
			}
			out := buf.String()
			assert.Contains(t, out, `"msg":"slow query detected"`)
			assert.Contains(t, out, `"operation":"SELECT"`)
			assert.Contains(t, out, "where author ilike $1")
			if tt.withErr {
				assert.Contains(t, out, "statement timeout")
			}
		})
	}
}

func TestSQLOperation(t *testing.T) {
	assert.Equal(t, "SELECT", sqlOperation("\n\t\tselect 1"))
	assert.Equal(t, "WITH", sqlOperation("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.Equal(t, "UNKNOWN", sqlOperation("   "))
}
