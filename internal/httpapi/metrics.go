package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"mindbridge/pkg/types"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mindbridge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mindbridge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mindbridge",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
	)

	conflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mindbridge",
			Subsystem: "http",
			Name:      "conflicts_total",
			Help:      "Requests rejected because a download, load or generation was in flight",
		},
		[]string{"reason"},
	)

	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mindbridge",
			Subsystem: "http",
			Name:      "chat_turns_total",
			Help:      "Chat turns answered over HTTP by outcome (reply, failed)",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInflight, conflictsTotal, chatTurnsTotal)
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the wrapper.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// MetricsMiddleware instruments requests for Prometheus
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w, status: 200}
		start := time.Now()
		httpInflight.Inc()
		next.ServeHTTP(sr, r)
		httpInflight.Dec()
		// the pattern is only known after routing
		path := routePatternOrPath(r)
		statusLabel := strconv.Itoa(sr.status)
		httpRequestsTotal.WithLabelValues(path, r.Method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, r.Method, statusLabel).Observe(time.Since(start).Seconds())
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// IncrementConflict is called when a request is rejected with 409.
func IncrementConflict(reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	conflictsTotal.WithLabelValues(reason).Inc()
}

// observeChatTurn counts one answered turn.
func observeChatTurn(resp types.ChatResponse) {
	outcome := "reply"
	if resp.Failed {
		outcome = "failed"
	}
	chatTurnsTotal.WithLabelValues(outcome).Inc()
}
