package semcache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"streamflix-rag/internal/metrics"
	"streamflix-rag/pkg/logging/logging"
)

// LoggingCache wraps a Cache with logging and metrics, and degrades failures:
// a failed lookup is a miss and a failed write is reported as false.
type LoggingCache struct {
	inner  Cache
	logger *zap.Logger
}

func NewLoggingCache(inner Cache, logger *zap.Logger) *LoggingCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingCache{inner: inner, logger: logger.Named("semcache")}
}

// Check never fails; errors are logged and reported as a miss.
func (c *LoggingCache) Check(ctx context.Context, query string) Result {
	start := time.Now()
	res, err := c.inner.Check(ctx, query)
	elapsed := time.Since(start)
	metrics.CacheLookupSeconds.Observe(elapsed.Seconds())

	result := "miss"
	switch {
	case err != nil:
		result = "error"
		res = Result{}
	case res.Hit:
		result = "hit"
	}
	metrics.CacheLookupsTotal.WithLabelValues(result).Inc()
	if res.Pruned > 0 {
		metrics.CacheLookupsTotal.WithLabelValues("expired").Add(float64(res.Pruned))
	}

	fields := []zap.Field{
		zap.String("cache_tier", "semantic"),
		zap.String("cache_result", result), // hit | miss | error
		zap.Float64("latency_ms", float64(elapsed.Microseconds())/1000.0),
	}
	if res.Hit {
		fields = append(fields,
			zap.Float64("distance", res.Distance),
			zap.Float64("similarity", res.Similarity()),
		)
	}
	if res.Pruned > 0 {
		fields = append(fields, zap.Int("pruned_expired", res.Pruned))
	}

	logger := c.loggerFor(ctx)
	if err != nil {
		logger.Warn("semantic_cache_check", append(fields, zap.Error(err))...)
	} else {
		logger.Info("semantic_cache_check", fields...)
	}
	return res
}

// Store reports whether the entry was persisted.
func (c *LoggingCache) Store(ctx context.Context, query, response string) bool {
	start := time.Now()
	err := c.inner.Store(ctx, query, response)

	fields := []zap.Field{
		zap.String("cache_tier", "semantic"),
		zap.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000.0),
	}

	logger := c.loggerFor(ctx)
	if err != nil {
		metrics.CacheWritesTotal.WithLabelValues("failed").Inc()
		logger.Error("semantic_cache_store", append(fields, zap.Error(err))...)
		return false
	}
	metrics.CacheWritesTotal.WithLabelValues("stored").Inc()
	logger.Info("semantic_cache_store", fields...)
	return true
}

func (c *LoggingCache) Clear(ctx context.Context) bool {
	if err := c.inner.Clear(ctx); err != nil {
		c.loggerFor(ctx).Error("semantic_cache_clear", zap.Error(err))
		return false
	}
	c.loggerFor(ctx).Info("semantic_cache_clear")
	return true
}

func (c *LoggingCache) Stats(ctx context.Context) Stats {
	st := c.inner.Stats(ctx)
	if st.Status == StatusError {
		c.loggerFor(ctx).Warn("semantic_cache_stats", zap.String("error", st.Error))
	}
	return st
}

func (c *LoggingCache) loggerFor(ctx context.Context) *zap.Logger {
	return logging.FromContextOr(ctx, c.logger)
}
