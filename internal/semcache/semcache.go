// Package semcache caches answers keyed by the meaning of the question.
//
// An entry is a (prompt, embedding, response) triple. A lookup embeds the new
// query and returns the nearest live entry when its cosine distance is within
// the configured threshold. Entries carry the embedding model that produced
// them and are only compared with vectors from the same model.
package semcache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"streamflix-rag/internal/embedding"
	"streamflix-rag/internal/vectorstore"
)

const (
	DefaultName              = "llmcache"
	DefaultTTL               = time.Hour
	DefaultDistanceThreshold = 0.5

	// nearest entries fetched per lookup, so expired ones can be skipped
	defaultCandidates = 5
)

const (
	fieldPrompt    = "prompt"
	fieldResponse  = "response"
	fieldModel     = "model"
	fieldCreatedAt = "created_at"
	fieldTTL       = "ttl_seconds"
)

var ErrEmptyInput = errors.New("semcache: query and response are required")

// Schema is the index layout the cache needs from a vectorstore.
func Schema(name string, dims int) vectorstore.Schema {
	if name == "" {
		name = DefaultName
	}
	return vectorstore.Schema{
		Name:    name,
		Prefix:  name + ":",
		Dims:    dims,
		Tags:    []string{fieldModel},
		Text:    []string{fieldPrompt},
		Numeric: []string{fieldCreatedAt},
	}
}

type Config struct {
	TTL               time.Duration
	DistanceThreshold float64
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.DistanceThreshold <= 0 {
		c.DistanceThreshold = DefaultDistanceThreshold
	}
	return c
}

// Result of a lookup. Distance is only meaningful on a hit.
type Result struct {
	Hit           bool    `json:"hit"`
	Response      string  `json:"response,omitempty"`
	MatchedPrompt string  `json:"matched_prompt,omitempty"`
	Distance      float64 `json:"distance"`
	// Pruned counts expired entries removed during the lookup.
	Pruned int `json:"-"`
}

// Similarity is 1 - Distance on a hit and 0 otherwise.
func (r Result) Similarity() float64 {
	if !r.Hit {
		return 0
	}
	return 1 - r.Distance
}

const (
	StatusActive = "active"
	StatusEmpty  = "empty"
	StatusError  = "error"
)

type Stats struct {
	Name              string  `json:"name"`
	EntryCount        int     `json:"entry_count"`
	TTLSeconds        int     `json:"ttl_seconds"`
	DistanceThreshold float64 `json:"distance_threshold"`
	Status            string  `json:"status"`
	Error             string  `json:"error,omitempty"`
}

// Cache is the error-returning contract; see LoggingCache for the degraded
// view used on the request path.
type Cache interface {
	Check(ctx context.Context, query string) (Result, error)
	Store(ctx context.Context, query, response string) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) Stats
}

// SemanticCache implements Cache over a vectorstore.Store.
type SemanticCache struct {
	store    vectorstore.Store
	embedder embedding.Embedder
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

func New(store vectorstore.Store, embedder embedding.Embedder, cfg Config, logger *zap.Logger) *SemanticCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemanticCache{
		store:    store,
		embedder: embedder,
		cfg:      cfg.withDefaults(),
		logger:   logger.Named("semcache"),
		now:      time.Now,
	}
}

func (c *SemanticCache) Config() Config { return c.cfg }

func (c *SemanticCache) Check(ctx context.Context, query string) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{}, nil
	}

	vec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("semcache: embed query: %w", err)
	}

	matches, err := c.store.Query(ctx, vec, defaultCandidates, c.modelFilter())
	if err != nil {
		return Result{}, fmt.Errorf("semcache: query store: %w", err)
	}

	now := c.now()
	var (
		res     Result
		expired []string
	)
	for _, m := range matches {
		if c.expired(m.Fields, now) {
			expired = append(expired, m.ID)
			continue
		}
		// nearest live entry decides
		if m.Distance <= c.cfg.DistanceThreshold {
			res = Result{
				Hit:           true,
				Response:      m.Fields[fieldResponse],
				MatchedPrompt: m.Fields[fieldPrompt],
				Distance:      m.Distance,
			}
		}
		break
	}

	if len(expired) > 0 {
		if err := c.store.Delete(ctx, expired...); err != nil {
			c.logger.Warn("failed to prune expired cache entries",
				zap.Int("count", len(expired)),
				zap.Error(err),
			)
		} else {
			res.Pruned = len(expired)
		}
	}
	return res, nil
}

// Store always inserts a new entry; near-duplicates are kept.
func (c *SemanticCache) Store(ctx context.Context, query, response string) error {
	if strings.TrimSpace(query) == "" || strings.TrimSpace(response) == "" {
		return ErrEmptyInput
	}

	vec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("semcache: embed query: %w", err)
	}

	doc := vectorstore.Document{
		ID: uuid.NewString(),
		Fields: map[string]string{
			fieldPrompt:    query,
			fieldResponse:  response,
			fieldModel:     c.embedder.Model(),
			fieldCreatedAt: strconv.FormatInt(c.now().UnixMilli(), 10),
			fieldTTL:       strconv.FormatInt(int64(c.cfg.TTL/time.Second), 10),
		},
		Vector: vec,
		// backends may drop it on their own; lookups still check age
		TTL: c.cfg.TTL,
	}
	if err := c.store.Upsert(ctx, doc); err != nil {
		return fmt.Errorf("semcache: store entry: %w", err)
	}
	return nil
}

func (c *SemanticCache) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("semcache: clear: %w", err)
	}
	return nil
}

func (c *SemanticCache) Stats(ctx context.Context) Stats {
	st := Stats{
		Name:              c.store.Schema().Name,
		TTLSeconds:        int(c.cfg.TTL / time.Second),
		DistanceThreshold: c.cfg.DistanceThreshold,
	}
	n, err := c.store.Count(ctx)
	switch {
	case err != nil:
		st.Status = StatusError
		st.Error = err.Error()
	case n == 0:
		st.Status = StatusEmpty
	default:
		st.Status = StatusActive
		st.EntryCount = n
	}
	return st
}

func (c *SemanticCache) modelFilter() *vectorstore.Filter {
	return &vectorstore.Filter{Tags: map[string]string{fieldModel: c.embedder.Model()}}
}

// expired reports whether an entry is older than its TTL. An entry exactly
// TTL old is still valid. Entries without readable metadata are treated as
// expired.
func (c *SemanticCache) expired(fields map[string]string, now time.Time) bool {
	createdMs, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return true
	}
	ttl := c.cfg.TTL
	if s, err := strconv.ParseInt(fields[fieldTTL], 10, 64); err == nil && s > 0 {
		ttl = time.Duration(s) * time.Second
	}
	return now.Sub(time.UnixMilli(createdMs)) > ttl
}
