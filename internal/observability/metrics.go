package observability

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for scoring, the questionnaire and HTTP.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	matchRequests *prometheus.CounterVec
	matchDuration prometheus.Histogram
	transitions   *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
}

// MustNewMetrics registers the collectors with reg. Collectors that are
// already registered are reused; any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		matchRequests: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "neighborfit",
				Subsystem: "matching",
				Name:      "requests_total",
				Help:      "Scoring requests by outcome.",
			},
			[]string{"status"},
		)),
		matchDuration: register(reg, prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "neighborfit",
				Subsystem: "matching",
				Name:      "duration_seconds",
				Help:      "Time spent scoring the catalog.",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
			},
		)),
		transitions: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "neighborfit",
				Subsystem: "questionnaire",
				Name:      "transitions_total",
				Help:      "Questionnaire actions by kind and result.",
			},
			[]string{"action", "result"},
		)),
		httpRequests: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "neighborfit",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status code.",
			},
			[]string{"route", "code"},
		)),
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) ObserveMatch(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.matchRequests.WithLabelValues(status).Inc()
	m.matchDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveTransition(action, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, result).Inc()
}

func (m *Metrics) ObserveHTTP(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
