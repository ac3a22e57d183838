package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPublisher struct {
	err   error
	calls int
}

func (s *stubPublisher) Publish(_ context.Context, _ string, _ *Event) error {
	s.calls++
	return s.err
}

func testBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             50 * time.Millisecond,
		ConsecutiveFailures: 2,
	}
}

func TestBreakerPublisher_PassesThroughWhenClosed(t *testing.T) {
	next := &stubPublisher{}
	b := NewBreakerPublisher(next, testBreakerConfig("test-pass"), testLogger())

	err := b.Publish(context.Background(), "bookstore.review.created", &Event{EventID: "e1"})
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerPublisher_OpensAfterConsecutiveFailures(t *testing.T) {
	next := &stubPublisher{err: errors.New("dial tcp: connection refused")}
	b := NewBreakerPublisher(next, testBreakerConfig("test-open"), testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := b.Publish(ctx, "bookstore.review.created", &Event{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrPublisherUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	err := b.Publish(ctx, "bookstore.review.created", &Event{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPublisherUnavailable)
	assert.Equal(t, 2, next.calls, "open breaker must not reach the producer")
}

func TestBreakerPublisher_RecoversAfterTimeout(t *testing.T) {
	next := &stubPublisher{err: errors.New("broker down")}
	b := NewBreakerPublisher(next, testBreakerConfig("test-recover"), testLogger())
	ctx := context.Background()

	_ = b.Publish(ctx, "t", &Event{})
	_ = b.Publish(ctx, "t", &Event{})
	require.Equal(t, gobreaker.StateOpen, b.State())

	time.Sleep(80 * time.Millisecond)
	next.err = nil

	require.NoError(t, b.Publish(ctx, "t", &Event{}))
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
