package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"streamflix-rag/internal/rag"
	"streamflix-rag/internal/semcache"
	"streamflix-rag/pkg/logging/logging"
)

type HelpCenter interface {
	Chat(ctx context.Context, query string, useCache bool) (*rag.ChatResponse, error)
}

type ArticleStats interface {
	Stats(ctx context.Context) rag.IndexStats
}

type HelpIngester interface {
	IngestHelpArticles(ctx context.Context, r io.Reader) (int, error)
}

type CacheStats interface {
	Stats(ctx context.Context) semcache.Stats
}

// HelpHandler serves the /api/help endpoints. Cache may be nil.
type HelpHandler struct {
	Center   HelpCenter
	Articles ArticleStats
	Ingester HelpIngester
	Cache    CacheStats
}

type helpChatRequest struct {
	Message  string `json:"message" validate:"required,max=4000"`
	UseCache *bool  `json:"use_cache"`
}

type helpChatResponse struct {
	*rag.ChatResponse
	ResponseTimeMS int64 `json:"response_time_ms"`
}

type helpStatsResponse struct {
	rag.IndexStats
	CacheStats any `json:"cache_stats"`
}

// Chat handles POST /api/help/chat.
func (h *HelpHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	var req helpChatRequest
	if !decode(w, r, &req) {
		return
	}
	useCache := req.UseCache == nil || *req.UseCache

	resp, err := h.Center.Chat(ctx, req.Message, useCache)
	if err != nil {
		switch {
		case errors.Is(err, rag.ErrEmptyQuery):
			writeError(w, http.StatusBadRequest, "invalid_request", "message must not be empty")
		case errors.Is(err, rag.ErrGuardrailUnavailable):
			logger.Error("guardrail unavailable", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "guardrail_unavailable", "the help center is temporarily unavailable")
		case errors.Is(err, rag.ErrGeneration):
			writeError(w, http.StatusBadGateway, "upstream_error", "could not generate an answer, please try again")
		default:
			logger.Error("help chat failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "help chat failed")
		}
		return
	}

	elapsed := time.Since(start)
	logger.Info("help_chat",
		zap.Bool("from_cache", resp.FromCache),
		zap.Bool("blocked", resp.Blocked),
		zap.Int("sources", len(resp.Sources)),
		zap.Duration("total_latency", elapsed),
	)
	writeJSON(w, http.StatusOK, helpChatResponse{
		ChatResponse:   resp,
		ResponseTimeMS: elapsed.Milliseconds(),
	})
}

// Ingest handles POST /api/help/ingest. A JSON array body replaces the
// bundled articles.
func (h *HelpHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body io.Reader
	if r.ContentLength > 0 {
		body = r.Body
	}
	n, err := h.Ingester.IngestHelpArticles(ctx, body)
	if err != nil {
		logging.L(ctx).Error("help ingest failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "ingest_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "success",
		Message: "Help articles ingested",
		Count:   intPtr(n),
	})
}

// Stats handles GET /api/help/stats.
func (h *HelpHandler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := helpStatsResponse{IndexStats: h.Articles.Stats(r.Context())}
	if h.Cache != nil {
		resp.CacheStats = h.Cache.Stats(r.Context())
	} else {
		resp.CacheStats = map[string]string{"status": "disabled"}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Suggestions handles GET /api/help/suggestions.
func (h *HelpHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"suggestions": rag.Suggestions()})
}
