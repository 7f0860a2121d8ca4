package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for engine cooks and attribute marshalling.
// A Metrics built from a disabled config, or a nil *Metrics, records nothing.
type Metrics struct {
	config MetricsConfig

	cooksStarted   *prometheus.CounterVec
	cooksCompleted *prometheus.CounterVec
	cookDuration   *prometheus.HistogramVec
	pollIterations *prometheus.CounterVec

	attributeFetches *prometheus.CounterVec
	engineCalls      *prometheus.CounterVec
	engineErrors     *prometheus.CounterVec

	stateTransitions *prometheus.CounterVec
	sessionsLost     prometheus.Counter
	activeCooks      prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	ns := cfg.Namespace
	buckets := cfg.CookDurationBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		cooksStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "cooks_started_total",
				Help:      "Total number of cook or node creation requests",
			},
			[]string{"kind"},
		),
		cooksCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "cooks_completed_total",
				Help:      "Total number of finished cooks by final cook state",
			},
			[]string{"kind", "state"},
		),
		cookDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "cook_duration_seconds",
				Help:      "Wall time spent waiting for a cook to reach a ready state",
				Buckets:   buckets,
			},
			[]string{"kind"},
		),
		pollIterations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "cook_poll_iterations_total",
				Help:      "Total number of cook state polls",
			},
			[]string{"kind"},
		),
		attributeFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "attribute_fetches_total",
				Help:      "Attribute fetches by native storage, requested storage and outcome",
			},
			[]string{"native", "requested", "outcome"},
		),
		engineCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "engine_calls_total",
				Help:      "Total number of engine RPC calls",
			},
			[]string{"method"},
		),
		engineErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "engine_errors_total",
				Help:      "Engine errors by class",
			},
			[]string{"class"},
		),
		stateTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "asset_state_transitions_total",
				Help:      "Asset state machine transitions",
			},
			[]string{"from", "to"},
		),
		sessionsLost: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "sessions_lost_total",
				Help:      "Number of session-lost notifications",
			},
		),
		activeCooks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "active_cooks",
				Help:      "Cooks currently being waited on",
			},
		),
	}

	registry.MustRegister(
		m.cooksStarted,
		m.cooksCompleted,
		m.cookDuration,
		m.pollIterations,
		m.attributeFetches,
		m.engineCalls,
		m.engineErrors,
		m.stateTransitions,
		m.sessionsLost,
		m.activeCooks,
	)

	return m, nil
}

// Registry returns the private registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordCookStarted counts a cook ("cook") or node creation ("create") request.
func (m *Metrics) RecordCookStarted(kind string) {
	if m == nil || m.cooksStarted == nil {
		return
	}
	m.cooksStarted.WithLabelValues(kind).Inc()
	m.activeCooks.Inc()
}

// RecordCookCompleted records the final cook state and time spent waiting.
func (m *Metrics) RecordCookCompleted(kind, state string, duration time.Duration) {
	if m == nil || m.cooksCompleted == nil {
		return
	}
	m.cooksCompleted.WithLabelValues(kind, state).Inc()
	m.cookDuration.WithLabelValues(kind).Observe(duration.Seconds())
	m.activeCooks.Dec()
}

// RecordPoll counts one cook state poll.
func (m *Metrics) RecordPoll(kind string) {
	if m == nil || m.pollIterations == nil {
		return
	}
	m.pollIterations.WithLabelValues(kind).Inc()
}

// RecordAttributeFetch records an attribute fetch. outcome is ok, coerced, mismatch or missing.
func (m *Metrics) RecordAttributeFetch(native, requested, outcome string) {
	if m == nil || m.attributeFetches == nil {
		return
	}
	m.attributeFetches.WithLabelValues(native, requested, outcome).Inc()
}

// RecordEngineCall counts an engine RPC call.
func (m *Metrics) RecordEngineCall(method string) {
	if m == nil || m.engineCalls == nil {
		return
	}
	m.engineCalls.WithLabelValues(method).Inc()
}

// RecordError records an error by class.
func (m *Metrics) RecordError(class string) {
	if m == nil || m.engineErrors == nil {
		return
	}
	m.engineErrors.WithLabelValues(class).Inc()
}

// RecordStateTransition records an asset state machine transition.
func (m *Metrics) RecordStateTransition(from, to string) {
	if m == nil || m.stateTransitions == nil {
		return
	}
	m.stateTransitions.WithLabelValues(from, to).Inc()
}

// RecordSessionLost counts a session-lost notification.
func (m *Metrics) RecordSessionLost() {
	if m == nil || m.sessionsLost == nil {
		return
	}
	m.sessionsLost.Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// NewMetricsServer returns an HTTP server exposing the metrics endpoint, or nil when disabled.
func (m *Metrics) NewMetricsServer() *http.Server {
	if m == nil || !m.config.Enabled {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	return &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
