// Package observer defines metrics hooks for driver phases.
package observer

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder records driver phase metrics.
type MetricsRecorder interface {
	ObserveCompile(ctx context.Context, languageID string, tag string, timeMs int64)
	ObserveTests(ctx context.Context, languageID string, tag string, passed, failed int, timeMs int64)
}

// NoopMetricsRecorder discards every observation.
type NoopMetricsRecorder struct{}

func (NoopMetricsRecorder) ObserveCompile(context.Context, string, string, int64) {}

func (NoopMetricsRecorder) ObserveTests(context.Context, string, string, int, int, int64) {}

// PrometheusRecorder exports driver metrics through client_golang collectors.
type PrometheusRecorder struct {
	phaseTotal    *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	testCases     *prometheus.CounterVec
}

// NewPrometheusRecorder registers the judge collectors on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		phaseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codedrill",
			Subsystem: "judge",
			Name:      "phase_total",
			Help:      "Driver phases by language, phase and outcome tag.",
		}, []string{"language", "phase", "tag"}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codedrill",
			Subsystem: "judge",
			Name:      "phase_duration_seconds",
			Help:      "Wall time of driver phases.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"language", "phase"}),
		testCases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codedrill",
			Subsystem: "judge",
			Name:      "test_cases_total",
			Help:      "Test events tallied from runner streams.",
		}, []string{"language", "result"}),
	}
	for _, c := range []prometheus.Collector{r.phaseTotal, r.phaseDuration, r.testCases} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) ObserveCompile(_ context.Context, languageID string, tag string, timeMs int64) {
	r.phaseTotal.WithLabelValues(languageID, "compile", tag).Inc()
	r.phaseDuration.WithLabelValues(languageID, "compile").Observe(float64(timeMs) / 1000)
}

func (r *PrometheusRecorder) ObserveTests(_ context.Context, languageID string, tag string, passed, failed int, timeMs int64) {
	r.phaseTotal.WithLabelValues(languageID, "test", tag).Inc()
	r.phaseDuration.WithLabelValues(languageID, "test").Observe(float64(timeMs) / 1000)
	r.testCases.WithLabelValues(languageID, "pass").Add(float64(passed))
	r.testCases.WithLabelValues(languageID, "fail").Add(float64(failed))
}
