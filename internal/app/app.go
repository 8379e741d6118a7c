// Package app wires configuration, clients, stores and services together.
// Both binaries build their dependencies through New.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"streamflix-rag/internal/config"
	"streamflix-rag/internal/embedding"
	"streamflix-rag/internal/guardrail"
	"streamflix-rag/internal/llm"
	"streamflix-rag/internal/movies"
	"streamflix-rag/internal/rag"
	"streamflix-rag/internal/semcache"
	"streamflix-rag/internal/vectorstore"
	"streamflix-rag/resources"
)

type App struct {
	Config config.Config
	Logger *zap.Logger

	Embedder   embedding.Embedder
	Articles   *rag.ArticleIndex
	HelpCenter *rag.HelpCenter
	Movies     *movies.SearchEngine

	// nil when disabled by configuration or when setup failed
	Guardrail *guardrail.Guardrail
	Cache     *semcache.LoggingCache

	redis   *redis.Client
	db      *gorm.DB
	llm     llm.Client
	closers []func() error
}

type options struct {
	embedder  embedding.Embedder
	generator rag.Generator
	llm       llm.Client
}

type Option func(*options)

// WithEmbedder replaces the upstream embedder. Its Dims method, when
// present, overrides EMBEDDING_DIMS.
func WithEmbedder(e embedding.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

func WithGenerator(g rag.Generator) Option {
	return func(o *options) { o.generator = g }
}

func WithLLMClient(c llm.Client) Option {
	return func(o *options) { o.llm = c }
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{Config: cfg, Logger: logger}
	if err := a.connect(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.llm = o.llm
	if a.llm == nil && (o.embedder == nil || o.generator == nil) {
		retries := cfg.MaxRetries
		if retries == 0 {
			retries = -1 // zero in the env means no retries
		}
		c, err := llm.NewClient(llm.Config{
			BaseURL:         cfg.LLMBaseURL,
			APIKey:          cfg.LLMAPIKey,
			UpstreamTimeout: cfg.UpstreamTimeout,
			MaxRetries:      retries,
		}, logger)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.llm = c
		if closer, ok := c.(interface{ Close() error }); ok {
			a.closers = append(a.closers, closer.Close)
		}
	}

	emb := o.embedder
	if emb == nil {
		emb = embedding.NewLLMEmbedder(a.llm, cfg.EmbeddingModel, logger)
	}
	if cfg.EmbeddingCacheTTL > 0 {
		emb = embedding.NewCached(emb, cfg.EmbeddingCacheTTL, logger)
	}
	a.Embedder = emb

	dims := cfg.EmbeddingDims
	if d, ok := o.embedder.(interface{ Dims() int }); ok {
		dims = d.Dims()
	}

	clients := vectorstore.Clients{Redis: a.redis, Postgres: a.db}
	storeCfg := vectorstore.Config{Backend: cfg.Backend, MemoryCapacity: cfg.MemoryCapacity}

	articleStore, err := vectorstore.New(storeCfg, rag.HelpSchema(dims), clients)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: help article store: %w", err)
	}
	a.Articles = rag.NewArticleIndex(articleStore, emb, logger)

	movieStore, err := vectorstore.New(storeCfg, movies.Schema(dims), clients)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: movie store: %w", err)
	}
	a.Movies = movies.NewSearchEngine(movieStore, emb, logger)

	a.Guardrail = a.buildGuardrail(ctx, emb)
	a.Cache = a.buildCache(ctx, emb, storeCfg, clients, dims)

	gen := o.generator
	if gen == nil {
		gen = rag.NewLLMGenerator(a.llm, cfg.ChatModel)
	}

	// typed nils must not reach the interfaces
	ragOpts := rag.Options{
		Retriever: a.Articles,
		Generator: gen,
		TopK:      cfg.HelpTopK,
	}
	if a.Guardrail != nil {
		ragOpts.Guardrail = a.Guardrail
	}
	if a.Cache != nil {
		ragOpts.Cache = a.Cache
	}
	a.HelpCenter, err = rag.NewHelpCenter(ragOpts, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Backend {
	case vectorstore.BackendRedis:
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Protocol: 2,
		})
		a.closers = append(a.closers, a.redis.Close)

		// fail fast if Redis is misconfigured
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Logger.Error("redis connection failed", zap.Error(err))
			return fmt.Errorf("app: redis: %w", err)
		}
		a.Logger.Info("redis connection established", zap.String("addr", cfg.RedisAddr))

	case vectorstore.BackendPGVector:
		db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return fmt.Errorf("app: postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("app: postgres: %w", err)
		}
		a.db = db
		a.closers = append(a.closers, sqlDB.Close)
		a.Logger.Info("postgres connection established")
	}
	return nil
}

func (a *App) buildGuardrail(ctx context.Context, emb embedding.Embedder) *guardrail.Guardrail {
	if !a.Config.GuardrailEnabled {
		a.Logger.Warn("scope guardrail disabled by configuration; all queries are treated as in scope")
		return nil
	}
	routes, err := config.LoadRoutes(a.Config.GuardrailRoutesFile)
	if err == nil {
		var g *guardrail.Guardrail
		g, err = guardrail.New(ctx, emb, routes, a.Logger)
		if err == nil {
			return g
		}
	}
	a.Logger.Warn("scope guardrail unavailable; all queries are treated as in scope", zap.Error(err))
	return nil
}

func (a *App) buildCache(ctx context.Context, emb embedding.Embedder, storeCfg vectorstore.Config, clients vectorstore.Clients, dims int) *semcache.LoggingCache {
	if !a.Config.CacheEnabled {
		a.Logger.Warn("semantic cache disabled by configuration")
		return nil
	}
	store, err := vectorstore.New(storeCfg, semcache.Schema(a.Config.CacheName, dims), clients)
	if err == nil {
		err = store.EnsureIndex(ctx)
	}
	if err != nil {
		a.Logger.Warn("semantic cache unavailable; answers will not be cached", zap.Error(err))
		return nil
	}
	sc := semcache.New(store, emb, semcache.Config{
		TTL:               a.Config.CacheTTL,
		DistanceThreshold: a.Config.CacheDistanceThreshold,
	}, a.Logger)
	return semcache.NewLoggingCache(sc, a.Logger)
}

// EnsureHelpArticles ingests the bundled help articles when the index is
// missing or empty.
func (a *App) EnsureHelpArticles(ctx context.Context) (bool, error) {
	articles, err := rag.ReadArticles(resources.HelpArticles())
	if err != nil {
		return false, err
	}
	return a.Articles.EnsureIngested(ctx, articles)
}

// IngestHelpArticles replaces the help index with articles read from r, or
// with the bundled set when r is nil.
func (a *App) IngestHelpArticles(ctx context.Context, r io.Reader) (int, error) {
	if r == nil {
		r = resources.HelpArticles()
	}
	articles, err := rag.ReadArticles(r)
	if err != nil {
		return 0, err
	}
	return a.Articles.Ingest(ctx, articles)
}

// IngestMovies replaces the movie index with movies read from r, or with the
// bundled catalogue when r is nil.
func (a *App) IngestMovies(ctx context.Context, r io.Reader) (int, error) {
	if r == nil {
		r = resources.Movies()
	}
	ms, err := movies.ReadMovies(r)
	if err != nil {
		return 0, err
	}
	return a.Movies.Ingest(ctx, ms)
}

// Ping checks the vector backend connection. The memory backend is always up.
func (a *App) Ping(ctx context.Context) error {
	switch {
	case a.redis != nil:
		return a.redis.Ping(ctx).Err()
	case a.db != nil:
		sqlDB, err := a.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	default:
		return nil
	}
}

// Close releases clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
