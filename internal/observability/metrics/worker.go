package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers queue consumption and per-step pipeline outcomes.
// It implements usecase.StepObserver.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	advanceTotal    *prometheus.CounterVec
	advanceDuration *prometheus.HistogramVec
	advanceInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec
	stepAttempts    *prometheus.CounterVec
	stepDuration    *prometheus.HistogramVec
	redriveTotal    *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	advanceTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorials",
			Subsystem: "worker",
			Name:      "advance_total",
			Help:      "Total advance invocations by resulting status.",
		},
		[]string{"service", "status"},
	)
	advanceDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tutorials",
			Subsystem: "worker",
			Name:      "advance_duration_seconds",
			Help:      "Advance duration in seconds by resulting status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60, 90},
		},
		[]string{"service", "status"},
	)
	advanceInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tutorials",
			Subsystem: "worker",
			Name:      "advance_in_flight",
			Help:      "Number of in-flight advance invocations.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tutorials",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between submission creation and the first advance.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	stepAttempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorials",
			Subsystem: "pipeline",
			Name:      "step_attempts_total",
			Help:      "Step attempts by step and outcome (success, transient, permanent).",
		},
		[]string{"service", "step", "outcome"},
	)
	stepDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tutorials",
			Subsystem: "pipeline",
			Name:      "step_duration_seconds",
			Help:      "Step attempt duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"service", "step"},
	)
	redriveTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorials",
			Subsystem: "worker",
			Name:      "redrive_total",
			Help:      "Submissions republished by the redrive sweeper.",
		},
		[]string{"service"},
	)

	registry.MustRegister(advanceTotal, advanceDuration, advanceInFlight, queueLag, stepAttempts, stepDuration, redriveTotal)

	return &WorkerMetrics{
		registry:        registry,
		service:         service,
		advanceTotal:    advanceTotal,
		advanceDuration: advanceDuration,
		advanceInFlight: advanceInFlight,
		queueLag:        queueLag,
		stepAttempts:    stepAttempts,
		stepDuration:    stepDuration,
		redriveTotal:    redriveTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartAdvance() {
	m.advanceInFlight.Inc()
}

// FinishAdvance records one advance. status is the submission status the
// call ended in, or "error" when the call itself failed.
func (m *WorkerMetrics) FinishAdvance(status string, duration time.Duration) {
	m.advanceInFlight.Dec()
	if status == "" {
		status = "unknown"
	}
	m.advanceTotal.WithLabelValues(m.service, status).Inc()
	m.advanceDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) ObserveStep(step, outcome string, duration time.Duration) {
	m.stepAttempts.WithLabelValues(m.service, step, outcome).Inc()
	m.stepDuration.WithLabelValues(m.service, step).Observe(duration.Seconds())
}

func (m *WorkerMetrics) RecordRedrive(count int) {
	if count <= 0 {
		return
	}
	m.redriveTotal.WithLabelValues(m.service).Add(float64(count))
}
