package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentstation/assetsync/internal/transport"
)

// Metrics holds the Prometheus collectors for sync runs. It also serves as
// the transport and catalog observer. A nil *Metrics records nothing.
type Metrics struct {
	devices  *prometheus.CounterVec
	attempts *prometheus.CounterVec
	retries  *prometheus.CounterVec
	lookups  *prometheus.CounterVec
	duration prometheus.Gauge
	lastRun  prometheus.Gauge
}

// NewMetrics registers the sync collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		devices: f.NewCounterVec(prometheus.CounterOpts{
			Name: "assetsync_devices_total",
			Help: "Devices processed, by outcome",
		}, []string{"outcome"}),
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "assetsync_http_attempts_total",
			Help: "HTTP attempts issued, by method and status code",
		}, []string{"method", "code"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "assetsync_http_retries_total",
			Help: "HTTP retries scheduled, by method and status code",
		}, []string{"method", "code"}),
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "assetsync_catalog_lookups_total",
			Help: "Catalog lookups, by kind and result",
		}, []string{"kind", "result"}),
		duration: f.NewGauge(prometheus.GaugeOpts{
			Name: "assetsync_run_duration_seconds",
			Help: "Duration of the last sync run in seconds",
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "assetsync_last_run_timestamp_seconds",
			Help: "Unix time the last sync run finished",
		}),
	}
}

// ObserveAttempt implements transport.Observer.
func (m *Metrics) ObserveAttempt(method string, status int) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(method, transport.StatusLabel(status)).Inc()
}

// ObserveRetry implements transport.Observer.
func (m *Metrics) ObserveRetry(method string, status int) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(method, transport.StatusLabel(status)).Inc()
}

// ObserveLookup implements assets.LookupObserver.
func (m *Metrics) ObserveLookup(kind, result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) observeDevice(o Outcome) {
	if m == nil {
		return
	}
	m.devices.WithLabelValues(string(o)).Inc()
}

func (m *Metrics) observeRun(s *Summary) {
	if m == nil {
		return
	}
	m.duration.Set(s.Duration.Seconds())
	m.lastRun.Set(float64(s.FinishedAt.Time.Unix()))
}
