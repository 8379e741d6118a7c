package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"streamflix-rag/internal/movies"
	"streamflix-rag/internal/vectorstore"
	"streamflix-rag/pkg/logging/logging"
)

type MovieSearch interface {
	Vector(ctx context.Context, query string, k int) ([]movies.Result, error)
	Filtered(ctx context.Context, query, genre string, minRating float64, k int) ([]movies.Result, error)
	Keyword(ctx context.Context, query string, k int) ([]movies.Result, error)
	Hybrid(ctx context.Context, query string, alpha float64, k int) ([]movies.Result, error)
	Range(ctx context.Context, query string, threshold float64, k int) ([]movies.Result, error)
	Clear(ctx context.Context) error
	IndexInfo(ctx context.Context) (vectorstore.Info, error)
}

type MovieIngester interface {
	IngestMovies(ctx context.Context, r io.Reader) (int, error)
}

type SearchHandler struct {
	Engine   MovieSearch
	Ingester MovieIngester
}

type searchRequest struct {
	Query      string `json:"query" validate:"required"`
	NumResults *int   `json:"num_results" validate:"omitempty,gte=1,lte=50"`
}

func (r searchRequest) k() int {
	if r.NumResults == nil {
		return movies.DefaultNumResults
	}
	return *r.NumResults
}

type filteredSearchRequest struct {
	searchRequest
	Genre     string `json:"genre"`
	MinRating *int   `json:"min_rating" validate:"omitempty,gte=1,lte=10"`
}

type hybridSearchRequest struct {
	searchRequest
	Alpha *float64 `json:"alpha" validate:"omitempty,gte=0,lte=1"`
}

type rangeSearchRequest struct {
	searchRequest
	DistanceThreshold *float64 `json:"distance_threshold" validate:"omitempty,gt=0,lte=1"`
}

type searchResponse struct {
	Results    []movies.Result `json:"results"`
	Count      int             `json:"count"`
	SearchType string          `json:"search_type"`
}

// Vector handles POST /api/search/vector.
func (h *SearchHandler) Vector(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Engine.Vector(r.Context(), req.Query, req.k())
	h.respond(w, r, movies.ModeVector, res, err)
}

// Filtered handles POST /api/search/filtered.
func (h *SearchHandler) Filtered(w http.ResponseWriter, r *http.Request) {
	var req filteredSearchRequest
	if !decode(w, r, &req) {
		return
	}
	var minRating float64
	if req.MinRating != nil {
		minRating = float64(*req.MinRating)
	}
	res, err := h.Engine.Filtered(r.Context(), req.Query, req.Genre, minRating, req.k())
	h.respond(w, r, movies.ModeFiltered, res, err)
}

// Keyword handles POST /api/search/keyword.
func (h *SearchHandler) Keyword(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Engine.Keyword(r.Context(), req.Query, req.k())
	h.respond(w, r, movies.ModeKeyword, res, err)
}

// Hybrid handles POST /api/search/hybrid.
func (h *SearchHandler) Hybrid(w http.ResponseWriter, r *http.Request) {
	var req hybridSearchRequest
	if !decode(w, r, &req) {
		return
	}
	alpha := movies.DefaultHybridAlpha
	if req.Alpha != nil {
		alpha = *req.Alpha
	}
	res, err := h.Engine.Hybrid(r.Context(), req.Query, alpha, req.k())
	h.respond(w, r, movies.ModeHybrid, res, err)
}

// Range handles POST /api/search/range. Unlike the other searches it looks
// at up to 20 candidates unless num_results is given.
func (h *SearchHandler) Range(w http.ResponseWriter, r *http.Request) {
	var req rangeSearchRequest
	if !decode(w, r, &req) {
		return
	}
	threshold := movies.DefaultDistanceThreshold
	if req.DistanceThreshold != nil {
		threshold = *req.DistanceThreshold
	}
	k := 0
	if req.NumResults != nil {
		k = *req.NumResults
	}
	res, err := h.Engine.Range(r.Context(), req.Query, threshold, k)
	h.respond(w, r, movies.ModeRange, res, err)
}

func (h *SearchHandler) respond(w http.ResponseWriter, r *http.Request, mode string, res []movies.Result, err error) {
	if err != nil {
		if errors.Is(err, movies.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, "invalid_request", "query must not be empty")
			return
		}
		logging.L(r.Context()).Error("movie search failed", zap.String("search_type", mode), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search_failed", err.Error())
		return
	}
	if res == nil {
		res = []movies.Result{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: res, Count: len(res), SearchType: mode})
}

// ClearData handles POST /api/clear-data.
func (h *SearchHandler) ClearData(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Clear(r.Context()); err != nil {
		logging.L(r.Context()).Error("clear movie data failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "clear_failed", "Failed to clear data")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "All movie data and index cleared"})
}

// CreateIndex handles POST /api/create-index: embeds the movie catalogue,
// from the body when one is sent, and rebuilds the index.
func (h *SearchHandler) CreateIndex(w http.ResponseWriter, r *http.Request) {
	var body io.Reader
	if r.ContentLength > 0 {
		body = r.Body
	}
	n, err := h.Ingester.IngestMovies(r.Context(), body)
	if err != nil {
		logging.L(r.Context()).Error("create movie index failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "create_index_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "success",
		Message: "Embeddings and search index created successfully",
		Count:   intPtr(n),
	})
}
