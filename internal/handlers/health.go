package handlers

import (
	"context"
	"net/http"

	"streamflix-rag/internal/vectorstore"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type IndexInfo interface {
	IndexInfo(ctx context.Context) (vectorstore.Info, error)
}

// HealthHandler reports store connectivity and movie index state.
type HealthHandler struct {
	Backend string
	Store   Pinger
	Movies  IndexInfo
}

type healthResponse struct {
	Status         string         `json:"status"`
	Backend        string         `json:"backend"`
	StoreConnected bool           `json:"store_connected"`
	IndexExists    bool           `json:"index_exists"`
	IndexInfo      map[string]any `json:"index_info"`
}

// Health handles GET /api/health. It always answers 200; status is healthy,
// degraded (store up, no index) or unhealthy.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := healthResponse{Backend: h.Backend, IndexInfo: map[string]any{}}

	resp.StoreConnected = h.Store.Ping(ctx) == nil

	info, err := h.Movies.IndexInfo(ctx)
	if err != nil {
		resp.IndexInfo["error"] = err.Error()
	} else {
		resp.IndexExists = info.Exists
		resp.IndexInfo["name"] = info.Name
		resp.IndexInfo["num_docs"] = info.Docs
	}

	switch {
	case resp.StoreConnected && resp.IndexExists:
		resp.Status = "healthy"
	case resp.StoreConnected:
		resp.Status = "degraded"
	default:
		resp.Status = "unhealthy"
	}
	writeJSON(w, http.StatusOK, resp)
}
