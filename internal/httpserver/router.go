package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"streamflix-rag/internal/app"
	"streamflix-rag/internal/handlers"
	"streamflix-rag/internal/metrics"
	"streamflix-rag/internal/middleware"
)

type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

type Handlers struct {
	Health *handlers.HealthHandler
	Search *handlers.SearchHandler
	Cache  *handlers.CacheHandler
	Help   *handlers.HelpHandler
}

// NewHandlers builds the HTTP handlers over a wired App.
func NewHandlers(a *app.App) Handlers {
	h := Handlers{
		Health: &handlers.HealthHandler{Backend: a.Config.Backend, Store: a, Movies: a.Movies},
		Search: &handlers.SearchHandler{Engine: a.Movies, Ingester: a},
		Cache:  &handlers.CacheHandler{},
		Help:   &handlers.HelpHandler{Center: a.HelpCenter, Articles: a.Articles, Ingester: a},
	}
	// a nil *LoggingCache must stay a nil interface
	if a.Cache != nil {
		h.Cache.Cache = a.Cache
		h.Help.Cache = a.Cache
	}
	return h
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, opts Options, h Handlers) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 512 * 1024
	}

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(middleware.MaxBodySize(opts.MaxBodyBytes))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health.Health)

		r.Route("/search", func(r chi.Router) {
			r.Post("/vector", h.Search.Vector)
			r.Post("/filtered", h.Search.Filtered)
			r.Post("/keyword", h.Search.Keyword)
			r.Post("/hybrid", h.Search.Hybrid)
			r.Post("/range", h.Search.Range)
		})
		r.Post("/clear-data", h.Search.ClearData)
		r.Post("/create-index", h.Search.CreateIndex)

		r.Route("/cache", func(r chi.Router) {
			r.Post("/query", h.Cache.Query)
			r.Post("/store", h.Cache.Store)
			r.Get("/stats", h.Cache.Stats)
			r.Post("/clear", h.Cache.Clear)
		})

		r.Route("/help", func(r chi.Router) {
			r.Post("/chat", h.Help.Chat)
			r.Post("/ingest", h.Help.Ingest)
			r.Get("/stats", h.Help.Stats)
			r.Get("/suggestions", h.Help.Suggestions)
		})
	})

	// liveness
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
