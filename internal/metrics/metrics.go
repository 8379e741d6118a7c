package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Semantic cache lookups by result: hit | miss | expired | error.
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semantic_cache_lookups_total",
			Help: "Semantic cache lookups by result.",
		},
		[]string{"result"},
	)

	// Semantic cache writes by result: stored | failed.
	CacheWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semantic_cache_writes_total",
			Help: "Semantic cache writes by result.",
		},
		[]string{"result"},
	)

	CacheLookupSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "semantic_cache_lookup_seconds",
			Help:    "Semantic cache lookup latency in seconds, embedding included.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	// Guardrail outcomes: allowed | blocked.
	GuardrailDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardrail_decisions_total",
			Help: "Scope guardrail decisions by outcome.",
		},
		[]string{"outcome"},
	)

	// Cache writes refused because of PII, by where it was found and category.
	PIIDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pii_cache_denials_total",
			Help: "Cache writes skipped because PII was detected.",
		},
		[]string{"source", "category"},
	)

	// Help chat outcomes: blocked | cache_hit | generated | no_results | error.
	ChatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "help_chat_requests_total",
			Help: "Help center chat requests by outcome.",
		},
		[]string{"outcome"},
	)

	// Tokens spent on generation: prompt | completion.
	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Tokens reported by the generation provider.",
		},
		[]string{"kind"},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_search_requests_total",
			Help: "Movie searches by mode.",
		},
		[]string{"mode"},
	)

	// Histogram: HTTP latency in seconds.
	HTTPLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"path", "method", "status_code"},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		CacheLookupsTotal,
		CacheWritesTotal,
		CacheLookupSeconds,
		GuardrailDecisionsTotal,
		PIIDenialsTotal,
		ChatRequestsTotal,
		LLMTokensTotal,
		SearchRequestsTotal,
		HTTPLatencySeconds,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures latency per route pattern, so path parameters do not
// blow up label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		HTTPLatencySeconds.
			WithLabelValues(path, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
