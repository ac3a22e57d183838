package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// DLQTopicPrefix is prepended to a source topic to name its dead letter topic.
const DLQTopicPrefix = "bookstore.dlq"

// Dead letter headers added next to the original message headers.
const (
	HeaderDLQTopic     = "dlq.original_topic"
	HeaderDLQPartition = "dlq.original_partition"
	HeaderDLQOffset    = "dlq.original_offset"
	HeaderDLQGroup     = "dlq.consumer_group"
	HeaderDLQError     = "dlq.error"
	HeaderDLQFailedAt  = "dlq.failed_at"
)

const maxDLQErrorBytes = 1024

// DLQProducer parks messages a consumer gave up on, unchanged apart from the
// failure headers, so they can be inspected and replayed.
type DLQProducer struct {
	writer messageWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewDLQProducer returns a producer writing synchronously to brokers with
// full acknowledgement.
func NewDLQProducer(brokers []string, logger *slog.Logger) *DLQProducer {
	return newDLQProducer(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              1,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}, logger)
}

func newDLQProducer(w messageWriter, logger *slog.Logger) *DLQProducer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DLQProducer{writer: w, logger: logger, now: time.Now}
}

// DLQTopic returns the dead letter topic of topic.
func DLQTopic(topic string) string {
	return DLQTopicPrefix + "." + topic
}

// Publish implements DeadLetterPublisher. The message keeps its key so that
// replays land on the same partition as the rest of the aggregate.
func (d *DLQProducer) Publish(ctx context.Context, msg kafka.Message, lastErr error, consumerGroup string) error {
	topic := DLQTopic(msg.Topic)

	headers := make([]kafka.Header, 0, len(msg.Headers)+6)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderDLQTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderDLQPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderDLQOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: HeaderDLQGroup, Value: []byte(consumerGroup)},
		kafka.Header{Key: HeaderDLQFailedAt, Value: []byte(d.now().UTC().Format(time.RFC3339))},
	)
	if lastErr != nil {
		reason := lastErr.Error()
		if len(reason) > maxDLQErrorBytes {
			reason = reason[:maxDLQErrorBytes]
		}
		headers = append(headers, kafka.Header{Key: HeaderDLQError, Value: []byte(reason)})
	}

	err := d.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	d.logger.WarnContext(ctx, "message dead-lettered",
		slog.String("dlq_topic", topic),
		slog.String("original_topic", msg.Topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
		slog.String("consumer_group", consumerGroup),
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (d *DLQProducer) Close() error {
	return d.writer.Close()
}
