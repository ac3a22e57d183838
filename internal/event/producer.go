package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/bookstore/internal/domain"
	pkgkafka "github.com/utafrali/bookstore/pkg/kafka"
	"github.com/utafrali/bookstore/pkg/logger"
)

// Kafka topic constants for bookstore domain events.
var (
	TopicReviewCreated = pkgkafka.Topic("review", "created")
	TopicReviewUpdated = pkgkafka.Topic("review", "updated")
	TopicReviewDeleted = pkgkafka.Topic("review", "deleted")
)

// AggregateTypeReview is the aggregate type of review events.
const AggregateTypeReview = "review"

// SourceBookstore identifies events originating from this service.
const SourceBookstore = "bookstore"

// ReviewEventData is the payload of every review.* event. The rating consumer
// only needs BookID.
type ReviewEventData struct {
	ID     string `json:"id"`
	BookID string `json:"book_id"`
	UserID string `json:"user_id"`
	Rating int    `json:"rating"`
}

// Producer publishes bookstore domain events to Kafka.
type Producer struct {
	kafka  pkgkafka.Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishReviewCreated publishes a review.created event.
func (p *Producer) PublishReviewCreated(ctx context.Context, review *domain.Review) error {
	return p.publishReview(ctx, TopicReviewCreated, review)
}

// PublishReviewUpdated publishes a review.updated event.
func (p *Producer) PublishReviewUpdated(ctx context.Context, review *domain.Review) error {
	return p.publishReview(ctx, TopicReviewUpdated, review)
}

// PublishReviewDeleted publishes a review.deleted event.
func (p *Producer) PublishReviewDeleted(ctx context.Context, review *domain.Review) error {
	return p.publishReview(ctx, TopicReviewDeleted, review)
}

func (p *Producer) publishReview(ctx context.Context, topic string, review *domain.Review) error {
	data := ReviewEventData{
		ID:     review.ID,
		BookID: review.BookID,
		UserID: review.UserID,
		Rating: review.Rating,
	}
	// The book id is the message key, so every event of one book lands on
	// one partition and its recomputes run one at a time.
	event, err := pkgkafka.NewEvent(topic, review.BookID, AggregateTypeReview, SourceBookstore, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("review_id", review.ID),
		slog.String("book_id", review.BookID),
		slog.String("event_id", event.EventID),
	)

	return nil
}
