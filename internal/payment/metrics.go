package payment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	WebhookEvents *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		WebhookEvents: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_payment_webhook_events_total",
			Help: "Payment webhook deliveries by event type and outcome",
		}, []string{"type", "outcome"}),
	}
}

func (m *Metrics) IncrementWebhook(eventType, outcome string) {
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}
