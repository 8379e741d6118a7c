package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Cached memoizes another Embedder in process memory.
// Keys include the model name so a model switch never serves stale vectors.
type Cached struct {
	next   Embedder
	store  *gocache.Cache
	logger *zap.Logger
}

// NewCached wraps next; ttl <= 0 uses ten minutes.
func NewCached(next Embedder, ttl time.Duration, logger *zap.Logger) *Cached {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{
		next:   next,
		store:  gocache.New(ttl, 2*ttl),
		logger: logger.Named("embedding_cache"),
	}
}

func (c *Cached) Model() string { return c.next.Model() }

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if v, ok := c.store.Get(key); ok {
		return v.([]float32), nil
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store.Set(key, vec, gocache.DefaultExpiration)
	return vec, nil
}

// EmbedMany only sends the texts that are not cached yet.
func (c *Cached) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missing []string
		slots   []int
	)
	for i, t := range texts {
		if v, ok := c.store.Get(c.key(t)); ok {
			out[i] = v.([]float32)
			continue
		}
		missing = append(missing, t)
		slots = append(slots, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	c.logger.Debug("embedding cache miss",
		zap.Int("requested", len(texts)),
		zap.Int("missing", len(missing)),
	)

	vecs, err := c.next.EmbedMany(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, v := range vecs {
		out[slots[j]] = v
		c.store.Set(c.key(missing[j]), v, gocache.DefaultExpiration)
	}
	return out, nil
}

// Len reports how many vectors are cached, including expired ones not yet purged.
func (c *Cached) Len() int { return c.store.ItemCount() }

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte("model:" + c.next.Model() + "|text:" + text))
	return hex.EncodeToString(sum[:])
}
