package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	ChatAnswersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_answers_total",
			Help: "Answered chat queries by pipeline stage and topic",
		},
		[]string{"source", "topic"},
	)
	ChatAnswerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_answer_duration_seconds",
			Help:    "End to end answer latency by pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.25, 1, 5, 15, 30, 60},
		},
		[]string{"source"},
	)
	ChatFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_failures_total",
			Help: "Chat queries that produced no answer",
		},
	)

	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Model provider calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
	ProviderCooldownsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_cooldowns_total",
			Help: "Cooldowns applied after provider rate limits",
		},
		[]string{"provider", "model"},
	)

	CacheEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "answer_cache_events_total",
			Help: "Answer cache hits, misses and writes",
		},
		[]string{"event"},
	)
)

var initOnce sync.Once

// InitMetrics registers every collector with the default registry. Safe to
// call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(ChatAnswersTotal)
		prometheus.MustRegister(ChatAnswerDuration)
		prometheus.MustRegister(ChatFailuresTotal)
		prometheus.MustRegister(ProviderRequestsTotal)
		prometheus.MustRegister(ProviderCooldownsTotal)
		prometheus.MustRegister(CacheEventsTotal)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// CacheHit, CacheMiss and CacheWrite tag the answer cache counters.
func CacheHit()   { CacheEventsTotal.WithLabelValues("hit").Inc() }
func CacheMiss()  { CacheEventsTotal.WithLabelValues("miss").Inc() }
func CacheWrite() { CacheEventsTotal.WithLabelValues("write").Inc() }

// ObserveAnswer records one answered query.
func ObserveAnswer(source, topic string, elapsed time.Duration) {
	ChatAnswersTotal.WithLabelValues(source, topic).Inc()
	ChatAnswerDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}
