package session

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mindbridge",
			Subsystem: "session",
			Name:      "loads_total",
			Help:      "Model loads by outcome",
		},
		[]string{"outcome"},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mindbridge",
			Subsystem: "session",
			Name:      "generations_total",
			Help:      "Generate calls by outcome",
		},
		[]string{"outcome"},
	)

	generationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mindbridge",
			Subsystem: "session",
			Name:      "generation_seconds",
			Help:      "Duration of engine inference calls in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, generationsTotal, generationSeconds)
}
