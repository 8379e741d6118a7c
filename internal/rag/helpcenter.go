// Package rag answers help-center questions: scope check, semantic cache,
// retrieval, generation and a PII-guarded cache write.
package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"streamflix-rag/internal/guardrail"
	"streamflix-rag/internal/metrics"
	"streamflix-rag/internal/pii"
	"streamflix-rag/pkg/logging/logging"
)

type Options struct {
	// Guardrail and Cache may be nil; the stage is then skipped.
	Guardrail Guardrail
	Cache     Cache

	Retriever Retriever
	Generator Generator
	// Policy defaults to a pii.Scanner with the built-in rules.
	Policy CachePolicy
	// TopK defaults to DefaultTopK.
	TopK int
}

type HelpCenter struct {
	guardrail Guardrail
	cache     Cache
	retriever Retriever
	generator Generator
	policy    CachePolicy
	topK      int
	logger    *zap.Logger
}

func NewHelpCenter(opts Options, logger *zap.Logger) (*HelpCenter, error) {
	if opts.Retriever == nil || opts.Generator == nil {
		return nil, fmt.Errorf("rag: retriever and generator are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("helpcenter")

	if opts.Policy == nil {
		opts.Policy = pii.NewScanner()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	logger.Info("help center ready",
		zap.Bool("guardrail", opts.Guardrail != nil),
		zap.Bool("cache", opts.Cache != nil),
		zap.Int("top_k", opts.TopK),
	)

	return &HelpCenter{
		guardrail: opts.Guardrail,
		cache:     opts.Cache,
		retriever: opts.Retriever,
		generator: opts.Generator,
		policy:    opts.Policy,
		topK:      opts.TopK,
		logger:    logger,
	}, nil
}

// Chat runs one question through the pipeline. Only an empty query, an
// unavailable guardrail or a failed generation return an error.
func (h *HelpCenter) Chat(ctx context.Context, query string, useCache bool) (*ChatResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	logger := logging.FromContextOr(ctx, h.logger)

	if h.guardrail != nil {
		match, err := h.guardrail.Classify(ctx, query)
		if err != nil {
			metrics.ChatRequestsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("%w: %v", ErrGuardrailUnavailable, err)
		}
		if !match.Matched {
			metrics.ChatRequestsTotal.WithLabelValues("blocked").Inc()
			logger.Info("query blocked by guardrail", zap.Float64("distance", match.Distance))
			return &ChatResponse{
				Answer:  guardrail.OutOfScopeMessage,
				Sources: []Passage{},
				Blocked: true,
			}, nil
		}
	}

	var cache Cache
	if useCache {
		cache = h.cache
	}

	if cache != nil {
		if res := cache.Check(ctx, query); res.Hit {
			metrics.ChatRequestsTotal.WithLabelValues("cache_hit").Inc()
			similarity := res.Similarity()
			return &ChatResponse{
				Answer:          res.Response,
				Sources:         []Passage{},
				FromCache:       true,
				CacheSimilarity: &similarity,
			}, nil
		}
	}

	passages, err := h.retriever.Retrieve(ctx, query, h.topK)
	if err != nil {
		logger.Warn("retrieval failed, answering without articles", zap.Error(err))
		passages = nil
	}
	if passages == nil {
		passages = []Passage{}
	}

	var (
		answer string
		usage  *TokenUsage
	)
	if len(passages) == 0 {
		answer = NoResultsMessage
		metrics.ChatRequestsTotal.WithLabelValues("no_results").Inc()
	} else {
		text, u, err := h.generator.Generate(ctx, systemPrompt, buildUserPrompt(query, passages))
		if err != nil {
			metrics.ChatRequestsTotal.WithLabelValues("error").Inc()
			logger.Error("generation failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
		}
		answer, usage = text, &u
		metrics.ChatRequestsTotal.WithLabelValues("generated").Inc()
	}

	if cache != nil {
		h.writeCache(ctx, logger, cache, query, answer)
	}

	return &ChatResponse{
		Answer:     answer,
		Sources:    passages,
		TokenUsage: usage,
	}, nil
}

func (h *HelpCenter) writeCache(ctx context.Context, logger *zap.Logger, cache Cache, query, answer string) {
	d := h.policy.PermitsCache(query, answer)
	if !d.Allow {
		categories := make([]string, 0, len(d.Categories))
		for _, c := range d.Categories {
			metrics.PIIDenialsTotal.WithLabelValues(d.Source, string(c)).Inc()
			categories = append(categories, string(c))
		}
		logger.Info("pii_cache_denied",
			zap.String("reason", d.Reason),
			zap.String("source", d.Source),
			zap.Strings("categories", categories),
		)
		return
	}
	// a failed write is logged by the cache and never fails the request
	cache.Store(ctx, query, answer)
}
