package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"streamflix-rag/internal/semcache"
	"streamflix-rag/pkg/logging/logging"
)

// MockResponsePrefix starts the canned answer /api/cache/query stores on a miss.
const MockResponsePrefix = "This is a mock LLM response for: "

type SemanticCache interface {
	Check(ctx context.Context, query string) semcache.Result
	Store(ctx context.Context, query, response string) bool
	Clear(ctx context.Context) bool
	Stats(ctx context.Context) semcache.Stats
}

// CacheHandler exposes the semantic cache for demos and administration.
// Every endpoint answers 503 when Cache is nil.
type CacheHandler struct {
	Cache SemanticCache
}

type cacheQueryRequest struct {
	Query string `json:"query" validate:"required"`
}

type cacheStoreRequest struct {
	Query    string `json:"query" validate:"required"`
	Response string `json:"response" validate:"required"`
}

type cacheQueryResponse struct {
	Hit          bool     `json:"hit"`
	Query        string   `json:"query"`
	Response     string   `json:"response"`
	CachedPrompt *string  `json:"cached_prompt"`
	Similarity   *float64 `json:"similarity"`
	Distance     *float64 `json:"distance"`
	Source       string   `json:"source"`
}

type cacheStatsResponse struct {
	Name              string  `json:"name"`
	TTL               int     `json:"ttl"`
	DistanceThreshold float64 `json:"distance_threshold"`
	NumEntries        int     `json:"num_entries"`
	Status            string  `json:"status"`
}

func (h *CacheHandler) available(w http.ResponseWriter) bool {
	if h.Cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache_disabled", "semantic cache is not configured")
		return false
	}
	return true
}

// Query handles POST /api/cache/query. On a miss it answers with a mock
// response and stores it, so the next similar query hits.
func (h *CacheHandler) Query(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	ctx := r.Context()

	var req cacheQueryRequest
	if !decode(w, r, &req) {
		return
	}

	res := h.Cache.Check(ctx, req.Query)
	if res.Hit {
		similarity, distance, prompt := res.Similarity(), res.Distance, res.MatchedPrompt
		writeJSON(w, http.StatusOK, cacheQueryResponse{
			Hit:          true,
			Query:        req.Query,
			Response:     res.Response,
			CachedPrompt: &prompt,
			Similarity:   &similarity,
			Distance:     &distance,
			Source:       "cache",
		})
		return
	}

	mock := MockResponsePrefix + req.Query
	if !h.Cache.Store(ctx, req.Query, mock) {
		logging.L(ctx).Warn("mock response not cached", zap.String("query", req.Query))
	}
	writeJSON(w, http.StatusOK, cacheQueryResponse{
		Query:    req.Query,
		Response: mock,
		Source:   "llm",
	})
}

// Store handles POST /api/cache/store.
func (h *CacheHandler) Store(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	var req cacheStoreRequest
	if !decode(w, r, &req) {
		return
	}
	if !h.Cache.Store(r.Context(), req.Query, req.Response) {
		writeError(w, http.StatusInternalServerError, "cache_store_failed", "Failed to store in cache")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Response cached successfully"})
}

// Stats handles GET /api/cache/stats.
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	st := h.Cache.Stats(r.Context())
	writeJSON(w, http.StatusOK, cacheStatsResponse{
		Name:              st.Name,
		TTL:               st.TTLSeconds,
		DistanceThreshold: st.DistanceThreshold,
		NumEntries:        st.EntryCount,
		Status:            st.Status,
	})
}

// Clear handles POST /api/cache/clear.
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	if !h.Cache.Clear(r.Context()) {
		writeError(w, http.StatusInternalServerError, "cache_clear_failed", "Failed to clear cache")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Semantic cache cleared"})
}
