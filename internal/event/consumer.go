package event

import (
	"context"
	"errors"
	"log/slog"

	apperrors "github.com/utafrali/bookstore/pkg/errors"
	pkgkafka "github.com/utafrali/bookstore/pkg/kafka"
)

// ConsumerGroupID is the default consumer group of the rating aggregator.
const ConsumerGroupID = "bookstore-rating-aggregator"

// RatingRecomputer recomputes the derived rating fields of one book.
type RatingRecomputer interface {
	Recompute(ctx context.Context, bookID, trigger string) error
}

// RatingConsumerHandler reacts to review events by recomputing the rating of
// the affected book. Each recompute reads the full review set, so redelivered
// or reordered events converge on the same result.
type RatingConsumerHandler struct {
	ratings RatingRecomputer
	logger  *slog.Logger
}

// NewRatingConsumerHandler creates a new rating consumer handler.
func NewRatingConsumerHandler(ratings RatingRecomputer, logger *slog.Logger) *RatingConsumerHandler {
	return &RatingConsumerHandler{
		ratings: ratings,
		logger:  logger,
	}
}

// Handle processes an incoming review event.
func (h *RatingConsumerHandler) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicReviewCreated, TopicReviewUpdated, TopicReviewDeleted:
	default:
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	var data ReviewEventData
	if err := event.DecodeData(&data); err != nil {
		return err
	}
	if data.BookID == "" {
		h.logger.WarnContext(ctx, "review event without book id",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	h.logger.DebugContext(ctx, "recomputing rating from event",
		slog.String("event_type", event.EventType),
		slog.String("event_id", event.EventID),
		slog.String("book_id", data.BookID),
	)
	err := h.ratings.Recompute(ctx, data.BookID, event.EventType)
	if errors.Is(err, apperrors.ErrNotFound) {
		// The book was deleted after the event was produced; its reviews
		// went with it, so there is nothing left to aggregate.
		h.logger.DebugContext(ctx, "book no longer exists, skipping recompute",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
			slog.String("book_id", data.BookID),
		)
		return nil
	}
	return err
}

// ConsumerTopics lists the topics the rating aggregator subscribes to.
func ConsumerTopics() []string {
	return []string{TopicReviewCreated, TopicReviewUpdated, TopicReviewDeleted}
}

// NewRatingConsumer builds a Kafka consumer that deduplicates events through
// store before they reach handler.
func NewRatingConsumer(
	brokers []string,
	groupID string,
	handler *RatingConsumerHandler,
	store pkgkafka.IdempotencyStore,
	logger *slog.Logger,
	opts ...pkgkafka.ConsumerOption,
) *pkgkafka.Consumer {
	if groupID == "" {
		groupID = ConsumerGroupID
	}
	cfg := pkgkafka.ConsumerConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topics:   ConsumerTopics(),
		MinBytes: 1,
		MaxBytes: 10e6,
	}
	return pkgkafka.NewConsumer(cfg, pkgkafka.IdempotentHandler(store, handler.Handle, logger), logger, opts...)
}
