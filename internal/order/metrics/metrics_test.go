package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := NewWith(prometheus.NewRegistry())

	m.IncrementCreated("card")
	m.IncrementCreated("card")
	m.IncrementStatus("pending", "confirmed", "account")
	m.IncrementDenied("forbidden")
	m.AddStaleCancelled(3)
	m.ObserveTransition(time.Now())

	assert.InDelta(t, 2, testutil.ToFloat64(m.OrdersCreated.WithLabelValues("card")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.StatusTransitions.WithLabelValues("pending", "confirmed", "account")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TransitionDenied.WithLabelValues("forbidden")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.StaleCancelled), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.TransitionDuration))
}
