package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the order module.
type Metrics struct {
	OrdersCreated      *prometheus.CounterVec
	StatusTransitions  *prometheus.CounterVec
	PaymentTransitions *prometheus.CounterVec
	TransitionDenied   *prometheus.CounterVec
	StaleCancelled     prometheus.Counter
	TransitionDuration prometheus.Histogram
}

// New registers order metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers order metrics on reg. Tests pass a fresh registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OrdersCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Orders created, by payment method",
		}, []string{"method"}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_status_transitions_total",
			Help: "Applied order status transitions",
		}, []string{"from", "to", "role"}),
		PaymentTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_payment_transitions_total",
			Help: "Applied payment status transitions",
		}, []string{"from", "to", "role"}),
		TransitionDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_transition_denied_total",
			Help: "Rejected transitions, by error code",
		}, []string{"code"}),
		StaleCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_stale_cancelled_total",
			Help: "Unpaid card orders cancelled by the sweeper",
		}),
		TransitionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_order_transition_duration_seconds",
			Help:    "Duration of order status transitions including persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementCreated(method string) {
	m.OrdersCreated.WithLabelValues(method).Inc()
}

func (m *Metrics) IncrementStatus(from, to, role string) {
	m.StatusTransitions.WithLabelValues(from, to, role).Inc()
}

func (m *Metrics) IncrementPayment(from, to, role string) {
	m.PaymentTransitions.WithLabelValues(from, to, role).Inc()
}

func (m *Metrics) IncrementDenied(code string) {
	m.TransitionDenied.WithLabelValues(code).Inc()
}

func (m *Metrics) AddStaleCancelled(n int) {
	m.StaleCancelled.Add(float64(n))
}

// ObserveTransition records a transition duration.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveTransition(start time.Time) {
	m.TransitionDuration.Observe(time.Since(start).Seconds())
}
