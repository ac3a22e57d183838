package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// ====================================================================
// MemoryIdempotencyStore
// ====================================================================

func newClockedStore(ttl time.Duration) (*MemoryIdempotencyStore, *time.Time) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewMemoryIdempotencyStore(ttl)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestMemoryIdempotencyStore_RemembersUntilExpiry(t *testing.T) {
	ctx := context.Background()
	s, now := newClockedStore(time.Minute)

	seen, err := s.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.Add(ctx, "evt-1"))
	*now = now.Add(59 * time.Second)
	seen, _ = s.Contains(ctx, "evt-1")
	assert.True(t, seen)

	*now = now.Add(2 * time.Second)
	seen, _ = s.Contains(ctx, "evt-1")
	assert.False(t, seen)
	assert.Zero(t, s.Len())
}

func TestMemoryIdempotencyStore_SweepsOnAdd(t *testing.T) {
	ctx := context.Background()
	s, now := newClockedStore(time.Minute)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Add(ctx, fmt.Sprintf("old-%d", i)))
	}
	assert.Equal(t, 5, s.Len())

	*now = now.Add(2 * time.Minute)
	require.NoError(t, s.Add(ctx, "fresh"))
	assert.Equal(t, 1, s.Len())
}

func TestMemoryIdempotencyStore_ConcurrentUse(t *testing.T) {
	s := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("evt-%d", i%10)
			_ = s.Add(ctx, id)
			_, _ = s.Contains(ctx, id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, s.Len())
}

// ====================================================================
// IdempotentHandler
// ====================================================================

type countingHandler struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingHandler) handle(context.Context, *Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

type brokenStore struct{ added int }

func (b *brokenStore) Contains(context.Context, string) (bool, error) {
	return true, errors.New("redis: connection refused")
}

func (b *brokenStore) Add(context.Context, string) error {
	b.added++
	return errors.New("redis: connection refused")
}

func reviewEventWithID(id string) *Event {
	return &Event{EventID: id, EventType: "bookstore.review.created", AggregateID: "book-1"}
}

func TestIdempotentHandler_SkipsRedelivery(t *testing.T) {
	inner := &countingHandler{}
	handle := IdempotentHandler(NewMemoryIdempotencyStore(time.Minute), inner.handle, testLogger())
	dupes := consumerDuplicates.WithLabelValues("bookstore.review.created")
	before := testutil.ToFloat64(dupes)

	require.NoError(t, handle(context.Background(), reviewEventWithID("evt-a")))
	require.NoError(t, handle(context.Background(), reviewEventWithID("evt-a")))
	require.NoError(t, handle(context.Background(), reviewEventWithID("evt-b")))

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, before+1, testutil.ToFloat64(dupes))
}

func TestIdempotentHandler_FailureIsNotRemembered(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	inner := &countingHandler{err: errors.New("book store down")}
	handle := IdempotentHandler(store, inner.handle, testLogger())

	assert.ErrorIs(t, handle(context.Background(), reviewEventWithID("evt-err")), inner.err)
	assert.ErrorIs(t, handle(context.Background(), reviewEventWithID("evt-err")), inner.err)

	assert.Equal(t, 2, inner.calls)
	seen, _ := store.Contains(context.Background(), "evt-err")
	assert.False(t, seen)
}

func TestIdempotentHandler_NoEventIDAlwaysHandled(t *testing.T) {
	inner := &countingHandler{}
	handle := IdempotentHandler(NewMemoryIdempotencyStore(time.Minute), inner.handle, testLogger())

	for i := 0; i < 3; i++ {
		require.NoError(t, handle(context.Background(), reviewEventWithID("")))
	}
	assert.Equal(t, 3, inner.calls)
}

func TestIdempotentHandler_StoreOutageFailsOpen(t *testing.T) {
	store := &brokenStore{}
	inner := &countingHandler{}
	handle := IdempotentHandler(store, inner.handle, testLogger())

	require.NoError(t, handle(context.Background(), reviewEventWithID("evt-x")))
	require.NoError(t, handle(context.Background(), reviewEventWithID("evt-x")))

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 2, store.added)
}
