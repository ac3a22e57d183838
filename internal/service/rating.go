package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/bookstore/internal/domain"
	"github.com/utafrali/bookstore/internal/repository"
	"github.com/utafrali/bookstore/pkg/tracing"
)

const ratingTracerName = "github.com/utafrali/bookstore/internal/service/rating"

// Recompute triggers, used as a metric label and in logs.
const (
	TriggerReviewCreated = "review_created"
	TriggerReviewUpdated = "review_updated"
	TriggerReviewDeleted = "review_deleted"
	TriggerAdmin         = "admin"
)

var (
	ratingRecomputeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstore_rating_recompute_total",
			Help: "Total number of book rating recomputations by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	ratingRecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookstore_rating_recompute_duration_seconds",
			Help:    "Duration of book rating recomputations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RatingService keeps the derived rating fields of a book consistent with
// its reviews. Every recompute reads the full review set, so calling it any
// number of times for the same state yields the same result.
type RatingService struct {
	books   repository.BookRepository
	reviews repository.ReviewRepository
	logger  *slog.Logger
}

// NewRatingService creates a new rating service.
func NewRatingService(books repository.BookRepository, reviews repository.ReviewRepository, logger *slog.Logger) *RatingService {
	return &RatingService{
		books:   books,
		reviews: reviews,
		logger:  logger,
	}
}

// Aggregate computes the rating summary of a book from all of its reviews
// and writes average_rating and number_of_reviews in one update. Errors
// match domain.ErrAggregation.
func (s *RatingService) Aggregate(ctx context.Context, bookID string) (domain.RatingSummary, error) {
	sum, count, err := s.reviews.RatingStats(ctx, bookID)
	if err != nil {
		return domain.RatingSummary{}, fmt.Errorf("%w: book %s: %w", domain.ErrAggregation, bookID, err)
	}

	summary := domain.NewRatingSummary(bookID, sum, count)

	if err := s.books.UpdateRatingFields(ctx, bookID, summary.AverageRating, summary.NumberOfReviews); err != nil {
		return domain.RatingSummary{}, fmt.Errorf("%w: book %s: %w", domain.ErrAggregation, bookID, err)
	}

	return summary, nil
}

// Recompute runs Aggregate and records the outcome. The error is returned
// so callers that can retry (the event consumer) do so.
func (s *RatingService) Recompute(ctx context.Context, bookID, trigger string) error {
	_, err := s.recompute(ctx, bookID, trigger)
	return err
}

// RecomputeBookRating recomputes the rating of a book after a review
// mutation. Failures are logged and counted but never returned: the
// mutation that triggered it has already succeeded, and the next recompute
// of the same book repairs the aggregate.
func (s *RatingService) RecomputeBookRating(ctx context.Context, bookID, trigger string) {
	_, _ = s.recompute(ctx, bookID, trigger)
}

// RecomputeNow recomputes the rating of a book and returns the fresh summary.
func (s *RatingService) RecomputeNow(ctx context.Context, bookID string) (*domain.RatingSummary, error) {
	summary, err := s.recompute(ctx, bookID, TriggerAdmin)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *RatingService) recompute(ctx context.Context, bookID, trigger string) (domain.RatingSummary, error) {
	ctx, span := tracing.Tracer(ratingTracerName).Start(ctx, "rating.recompute",
		trace.WithAttributes(
			attribute.String("book.id", bookID),
			attribute.String("rating.trigger", trigger),
		),
	)
	defer span.End()

	start := time.Now()
	summary, err := s.Aggregate(ctx, bookID)
	ratingRecomputeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregation failed")
		ratingRecomputeTotal.WithLabelValues(trigger, "failure").Inc()
		s.logger.ErrorContext(ctx, "failed to recompute book rating",
			slog.String("book_id", bookID),
			slog.String("trigger", trigger),
			slog.String("error", err.Error()),
		)
		return domain.RatingSummary{}, err
	}

	span.SetAttributes(
		attribute.Float64("rating.average", summary.AverageRating),
		attribute.Int("rating.count", summary.NumberOfReviews),
	)
	ratingRecomputeTotal.WithLabelValues(trigger, "success").Inc()
	s.logger.DebugContext(ctx, "book rating recomputed",
		slog.String("book_id", bookID),
		slog.String("trigger", trigger),
		slog.Float64("average_rating", summary.AverageRating),
		slog.Int("number_of_reviews", summary.NumberOfReviews),
	)
	return summary, nil
}
