package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 30, 120},
		},
		[]string{"method", "route"},
	)

	GenerationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "question_generation_total",
			Help: "Question generation runs by generator and outcome",
		},
		[]string{"generator", "outcome"},
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "question_generation_duration_seconds",
			Help:    "Wall time of question generation runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"generator"},
	)

	AttemptConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "answer_attempt_conflicts_total",
			Help: "Optimistic version conflicts while recording answer attempts",
		},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(RequestCounter, RequestDuration, GenerationTotal, GenerationDuration, AttemptConflicts)
}
