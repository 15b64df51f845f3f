package agent

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records turn outcomes for Prometheus.
type Metrics struct {
	turnsTotal          *prometheus.CounterVec
	turnDuration        *prometheus.HistogramVec
	tokensUsed          prometheus.Counter
	providerErrors      prometheus.Counter
	persistenceFailures prometheus.Counter
	rateLimited         prometheus.Counter
}

// NewMetrics creates the chat metrics and registers them with reg.
// A nil reg leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "personachat_turns_total",
				Help: "Total number of chat turns by detected topic and block status",
			},
			[]string{"topic", "blocked"},
		),
		turnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "personachat_turn_duration_seconds",
				Help:    "Chat turn duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
			},
			[]string{"state"},
		),
		tokensUsed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "personachat_tokens_used_total",
			Help: "Total number of model tokens consumed",
		}),
		providerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "personachat_provider_errors_total",
			Help: "Total number of failed model generations",
		}),
		persistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "personachat_history_persist_failures_total",
			Help: "Total number of chat turns whose history could not be saved",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "personachat_rate_limited_total",
			Help: "Total number of chat requests rejected by the rate limiter",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.turnsTotal,
			m.turnDuration,
			m.tokensUsed,
			m.providerErrors,
			m.persistenceFailures,
			m.rateLimited,
		)
	}
	return m
}

func (m *Metrics) observeTurn(resp *ChatResponse, started time.Time) {
	if m == nil || resp == nil {
		return
	}
	m.turnsTotal.WithLabelValues(string(resp.Metadata.TopicDetected), strconv.FormatBool(resp.Metadata.Blocked)).Inc()
	m.turnDuration.WithLabelValues(string(resp.State)).Observe(time.Since(started).Seconds())
	if resp.Metadata.TokensUsed > 0 {
		m.tokensUsed.Add(float64(resp.Metadata.TokensUsed))
	}
}

func (m *Metrics) observeFailure(started time.Time) {
	if m == nil {
		return
	}
	m.turnDuration.WithLabelValues(string(StateFailed)).Observe(time.Since(started).Seconds())
}

func (m *Metrics) providerError() {
	if m != nil {
		m.providerErrors.Inc()
	}
}

func (m *Metrics) persistenceFailure() {
	if m != nil {
		m.persistenceFailures.Inc()
	}
}

func (m *Metrics) rateLimitedRequest() {
	if m != nil {
		m.rateLimited.Inc()
	}
}
