package download

import "github.com/prometheus/client_golang/prometheus"

var (
	bytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mindbridge",
			Subsystem: "download",
			Name:      "bytes_total",
			Help:      "Total bytes written to download staging files",
		},
	)

	outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mindbridge",
			Subsystem: "download",
			Name:      "outcomes_total",
			Help:      "Finished download jobs by outcome",
		},
		[]string{"outcome"},
	)

	activeJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mindbridge",
			Subsystem: "download",
			Name:      "active",
			Help:      "1 while a download job is requested or downloading",
		},
	)
)

func init() {
	prometheus.MustRegister(bytesTotal, outcomesTotal, activeJobs)
}
