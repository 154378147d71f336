package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "storefront/pkg/platform/audit"
	"storefront/pkg/platform/audit/store/memory"
	"storefront/pkg/requestcontext"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Subject: "order-1",
		Action:  string(audit.EventOrderCreated),
	})
	require.NoError(t, err)

	events, err := store.ListBySubject(context.Background(), "order-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventOrderCreated), events[0].Action)
	assert.Equal(t, audit.CategoryCommerce, events[0].Category)
	assert.NotEmpty(t, events[0].ID)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			Subject: "order-1",
			Action:  string(audit.EventOrderStatus),
		})
		require.NoError(t, err)
	}
	pub.Close()
	pub.Close()

	events, err := store.ListBySubject(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

type blockingStore struct {
	release chan struct{}
	mu      sync.Mutex
	events  []audit.Event
}

func (s *blockingStore) Append(_ context.Context, e audit.Event) error {
	<-s.release
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func TestPublisher_BufferFull(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	pub := NewPublisher(store, WithAsyncBuffer(1))

	var full int
	for range 5 {
		if err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventLoginFailed)}); errors.Is(err, ErrBufferFull) {
			full++
		}
	}
	assert.Positive(t, full)

	close(store.release)
	pub.Close()
}

func TestPublisher_Defaults(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	ctx := requestcontext.WithRequestID(context.Background(), "req-42")

	before := time.Now()
	require.NoError(t, pub.Emit(ctx, audit.Event{Subject: "u", Action: string(audit.EventRoleChanged)}))
	after := time.Now()

	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(ctx, audit.Event{Subject: "u", Action: "custom", Timestamp: custom, RequestID: "given"}))

	events, err := store.ListBySubject(context.Background(), "u")
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.False(t, events[0].Timestamp.Before(before))
	assert.False(t, events[0].Timestamp.After(after))
	assert.Equal(t, "req-42", events[0].RequestID)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)

	assert.Equal(t, custom, events[1].Timestamp)
	assert.Equal(t, "given", events[1].RequestID)
	assert.Equal(t, audit.CategoryOperations, events[1].Category)
}
