package scheduleapi

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts API requests.
type Metrics struct {
	requests *prometheus.CounterVec
}

// NewMetrics creates and registers the API metrics on reg. A nil reg
// registers nothing.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skitrip_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "method", "code"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests)
	}
	return m
}

func (m *Metrics) observe(route, method string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}
