package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the origin switcher.
type Metrics struct {
	registry      *prometheus.Registry
	activeOrigin  prometheus.Gauge
	segmentAge    *prometheus.GaugeVec
	origin5xx     *prometheus.CounterVec
	probeFailures *prometheus.CounterVec
	failovers     prometheus.Counter
	switchbacks   prometheus.Counter
	requestsTotal *prometheus.CounterVec
}

// New creates and registers Prometheus metrics for the switcher.
// The active-origin gauge starts at 1 (primary).
func New() *Metrics {
	registry := prometheus.NewRegistry()

	activeOrigin := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "switcher_active_origin",
		Help: "1 primary, 0 backup",
	})
	segmentAge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "segment_age_seconds",
		Help: "Seconds since the latest EXT-X-PROGRAM-DATE-TIME in the origin playlist",
	}, []string{"origin"})
	origin5xx := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "origin_http_5xx_total",
		Help: "Playlist probes answered with a 5xx status",
	}, []string{"origin"})
	probeFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "switcher_probe_failures_total",
		Help: "Playlist probes that produced no usable age, by reason",
	}, []string{"origin", "reason"})
	failovers := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "failovers_total",
		Help: "Transitions from primary to backup",
	})
	switchbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "switchbacks_total",
		Help: "Transitions from backup back to primary",
	})
	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "switcher_http_requests_total",
		Help: "HTTP requests served, by status code",
	}, []string{"code"})

	registry.MustRegister(
		activeOrigin,
		segmentAge,
		origin5xx,
		probeFailures,
		failovers,
		switchbacks,
		requestsTotal,
	)

	activeOrigin.Set(1)

	return &Metrics{
		registry:      registry,
		activeOrigin:  activeOrigin,
		segmentAge:    segmentAge,
		origin5xx:     origin5xx,
		probeFailures: probeFailures,
		failovers:     failovers,
		switchbacks:   switchbacks,
		requestsTotal: requestsTotal,
	}
}

// SetActivePrimary sets the active-origin gauge to 1 for primary and 0 for backup.
func (m *Metrics) SetActivePrimary(primary bool) {
	if primary {
		m.activeOrigin.Set(1)
		return
	}
	m.activeOrigin.Set(0)
}

// SetSegmentAge records the latest staleness age for origin.
func (m *Metrics) SetSegmentAge(origin string, seconds float64) {
	m.segmentAge.WithLabelValues(origin).Set(seconds)
}

// IncOrigin5xx counts a 5xx playlist response from origin.
func (m *Metrics) IncOrigin5xx(origin string) {
	m.origin5xx.WithLabelValues(origin).Inc()
}

// IncProbeFailure counts a failed probe of origin.
func (m *Metrics) IncProbeFailure(origin, reason string) {
	m.probeFailures.WithLabelValues(origin, reason).Inc()
}

// IncFailovers increments the failover counter.
func (m *Metrics) IncFailovers() {
	m.failovers.Inc()
}

// IncSwitchbacks increments the switchback counter.
func (m *Metrics) IncSwitchbacks() {
	m.switchbacks.Inc()
}

// IncRequests counts one served request with the given status code.
func (m *Metrics) IncRequests(code int) {
	m.requestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	inner := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		inner.ServeHTTP(w, r)
	})
}
