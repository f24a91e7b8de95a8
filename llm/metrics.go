package llm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the client's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skitrip",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "LLM completions by capability, provider and outcome.",
		}, []string{"capability", "provider", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "skitrip",
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "LLM completion latency including retries and fallbacks.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"capability", "provider"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skitrip",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens consumed by model and kind (prompt, completion).",
		}, []string{"model", "kind"}),
	}
	reg.MustRegister(m.requests, m.duration, m.tokens)
	return m
}

func (m *Metrics) observe(capability, provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(capability, provider, outcome).Inc()
	m.duration.WithLabelValues(capability, provider).Observe(elapsed.Seconds())
}

func (m *Metrics) addTokens(model string, usage TokenUsage) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues(model, "prompt").Add(float64(usage.PromptTokens))
	m.tokens.WithLabelValues(model, "completion").Add(float64(usage.CompletionTokens))
}
