package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "bookstore"

var (
	consumerReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "kafka_consumer",
		Name:      "messages_received_total",
		Help:      "Messages fetched from the broker, before handling.",
	}, []string{"topic", "consumer_group"})

	consumerProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "kafka_consumer",
		Name:      "messages_processed_total",
		Help:      "Messages handled successfully, retries included.",
	}, []string{"topic", "consumer_group"})

	consumerFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "kafka_consumer",
		Name:      "messages_failed_total",
		Help:      "Messages whose handler failed every attempt.",
	}, []string{"topic", "consumer_group"})

	consumerDuplicates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "kafka_consumer",
		Name:      "messages_duplicate_total",
		Help:      "Redelivered events skipped because their ID was already processed.",
	}, []string{"event_type"})

	consumerHandleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "kafka_consumer",
		Name:      "handle_duration_seconds",
		Help:      "Time spent handling one message, retries included.",
		Buckets:   []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10},
	}, []string{"topic", "consumer_group"})

	deadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "kafka_consumer",
		Name:      "dlq_published_total",
		Help:      "Messages written to the dead-letter topic.",
	}, []string{"topic", "consumer_group"})

	deadLetterFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "kafka_consumer",
		Name:      "dlq_publish_failures_total",
		Help:      "Messages that could not be written to the dead-letter topic and were dropped.",
	}, []string{"topic", "consumer_group"})

	producerPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "kafka_producer",
		Name:      "messages_published_total",
		Help:      "Events published.",
	}, []string{"topic"})

	producerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "kafka_producer",
		Name:      "publish_errors_total",
		Help:      "Failed publish attempts.",
	}, []string{"topic"})

	producerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "kafka_producer",
		Name:      "publish_duration_seconds",
		Help:      "Latency of a publish call.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"topic"})
)
