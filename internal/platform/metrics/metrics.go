package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide Prometheus metrics. Module metrics live with
// their modules.
type Metrics struct {
	UsersCreated   prometheus.Counter
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	SweeperRuns    *prometheus.CounterVec
	SweeperLastRun prometheus.Gauge
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UsersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "storefront_users_created_total",
			Help: "Total number of users created in the system",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "HTTP requests by method, route pattern and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		SweeperRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_sweeper_runs_total",
			Help: "Stale order sweeps, by outcome",
		}, []string{"outcome"}),
		SweeperLastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_sweeper_last_run_timestamp_seconds",
			Help: "Unix time of the last completed sweep",
		}),
	}
}

// IncrementUsersCreated increments the users created counter by 1
func (m *Metrics) IncrementUsersCreated() {
	m.UsersCreated.Inc()
}

// ObserveHTTPRequest satisfies the request latency middleware.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ObserveSweep(err error, at time.Time) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.SweeperRuns.WithLabelValues(outcome).Inc()
	m.SweeperLastRun.Set(float64(at.Unix()))
}
