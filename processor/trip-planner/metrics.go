package tripplanner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360studio/skitrip/trip"
)

// Metrics records pipeline stage outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	stageRuns     *prometheus.CounterVec
	attempts      prometheus.Histogram
}

// NewMetrics registers the pipeline metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skitrip_stage_duration_seconds",
			Help:    "Duration of schedule pipeline stages.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 240, 480},
		}, []string{"stage", "outcome"}),
		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skitrip_stage_runs_total",
			Help: "Schedule pipeline stage runs by outcome.",
		}, []string{"stage", "outcome"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "skitrip_accommodation_attempts",
			Help:    "Model calls per accommodation planning run.",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
	}
	reg.MustRegister(m.stageDuration, m.stageRuns, m.attempts)
	return m
}

func (m *Metrics) observeStage(stage trip.Stage, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(string(stage), outcome).Observe(elapsed.Seconds())
	m.stageRuns.WithLabelValues(string(stage), outcome).Inc()
}

func (m *Metrics) observeAttempts(n int) {
	if m == nil {
		return
	}
	m.attempts.Observe(float64(n))
}
