package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu        sync.Mutex
	pending   []Entry
	published []string
}

func (s *fakeSource) FetchUnpublished(_ context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(limit, len(s.pending))
	return append([]Entry(nil), s.pending[:n]...), nil
}

func (s *fakeSource) MarkPublished(_ context.Context, ids []string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, ids...)
	s.pending = s.pending[len(ids):]
	return nil
}

type fakeProducer struct {
	batches [][]Entry
	err     error
}

func (p *fakeProducer) Publish(_ context.Context, entries []Entry) error {
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, entries)
	return nil
}

func entries(n int) []Entry {
	out := make([]Entry, n)
	for i := range out {
		out[i] = Entry{ID: fmt.Sprintf("e-%d", i), Key: "order-1", Type: "order_status_changed", Payload: []byte(`{}`)}
	}
	return out
}

func TestDrain(t *testing.T) {
	t.Run("publishes in batches and marks them", func(t *testing.T) {
		src := &fakeSource{pending: entries(5)}
		prod := &fakeProducer{}
		r := New(src, prod, WithBatchSize(2))

		sent, err := r.Drain(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 5, sent)
		assert.Len(t, prod.batches, 3)
		assert.Len(t, src.published, 5)
		assert.Empty(t, src.pending)
	})

	t.Run("producer failure leaves entries unpublished", func(t *testing.T) {
		src := &fakeSource{pending: entries(3)}
		prod := &fakeProducer{err: errors.New("broker down")}
		r := New(src, prod)

		sent, err := r.Drain(context.Background())
		require.Error(t, err)
		assert.Zero(t, sent)
		assert.Len(t, src.pending, 3)
		assert.Empty(t, src.published)
	})

	t.Run("empty outbox", func(t *testing.T) {
		r := New(&fakeSource{}, &fakeProducer{})
		sent, err := r.Drain(context.Background())
		require.NoError(t, err)
		assert.Zero(t, sent)
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &fakeSource{pending: entries(1)}
	prod := &fakeProducer{}
	r := New(src, prod, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := r.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, []string{"e-0"}, src.published)
}
