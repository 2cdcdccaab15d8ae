package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riskibarqy/matchthread-live/internal/livescore"
	"github.com/riskibarqy/matchthread-live/internal/platform/ratelimit"
	"github.com/riskibarqy/matchthread-live/internal/platform/resilience"
)

const namespace = "matchthread"

var breakerStates = []resilience.CircuitState{
	resilience.CircuitStateClosed,
	resilience.CircuitStateOpen,
	resilience.CircuitStateHalfOpen,
}

// BudgetSource exposes request budget usage.
type BudgetSource interface {
	Stats() ratelimit.Stats
}

// Metrics records live updater activity on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	tickDuration       prometheus.Histogram
	tickMatches        *prometheus.CounterVec
	fetchFailures      *prometheus.CounterVec
	notifications      *prometheus.CounterVec
	cacheEntries       prometheus.Gauge
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
}

var _ livescore.Recorder = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent in one live updater tick",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		tickMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_matches_total",
			Help:      "Matches handled by ticks, by outcome",
		}, []string{"outcome"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Snapshot fetch failures by kind",
		}, []string{"kind"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications emitted by kind",
		}, []string{"kind"}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "score_cache_entries",
			Help:      "Matches currently held in the score cache",
		}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "1 for the current state of each circuit breaker",
		}, []string{"breaker", "state"}),
		breakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions",
		}, []string{"breaker", "to"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.tickDuration,
		m.tickMatches,
		m.fetchFailures,
		m.notifications,
		m.cacheEntries,
		m.breakerState,
		m.breakerTransitions,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveTick(duration time.Duration, report livescore.TickReport) {
	m.tickDuration.Observe(duration.Seconds())
	m.tickMatches.WithLabelValues("due").Add(float64(report.Due))
	m.tickMatches.WithLabelValues("fetched").Add(float64(report.Fetched))
	m.tickMatches.WithLabelValues("failed").Add(float64(report.Failed))
	m.tickMatches.WithLabelValues("evicted").Add(float64(report.Evicted))
}

func (m *Metrics) FetchFailed(kind string) {
	m.fetchFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) NotificationsEmitted(kind livescore.Kind, count int) {
	if count <= 0 {
		return
	}
	m.notifications.WithLabelValues(string(kind)).Add(float64(count))
}

func (m *Metrics) CacheSize(entries int) {
	m.cacheEntries.Set(float64(entries))
}

// TrackBreaker seeds the state series for a breaker that has not moved yet.
func (m *Metrics) TrackBreaker(name string, state resilience.CircuitState) {
	m.setBreakerState(name, state)
}

// BreakerStateChanged matches resilience.StateChangeFunc.
func (m *Metrics) BreakerStateChanged(name string, _, to resilience.CircuitState) {
	m.breakerTransitions.WithLabelValues(name, string(to)).Inc()
	m.setBreakerState(name, to)
}

func (m *Metrics) setBreakerState(name string, current resilience.CircuitState) {
	for _, state := range breakerStates {
		value := 0.0
		if state == current {
			value = 1
		}
		m.breakerState.WithLabelValues(name, string(state)).Set(value)
	}
}

// WatchBudget exports request budget usage, read at scrape time.
func (m *Metrics) WatchBudget(source BudgetSource) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_daily_calls",
			Help:      "Upstream requests made since the last daily reset",
		}, func() float64 { return float64(source.Stats().DailyCalls) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_daily_remaining",
			Help:      "Upstream requests left in the daily budget",
		}, func() float64 { return float64(source.Stats().RemainingDaily) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_polling_interval_seconds",
			Help:      "Polling interval suggested by the remaining budget",
		}, func() float64 { return source.Stats().PollingInterval.Seconds() }),
	)
}
