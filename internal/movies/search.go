// Package movies implements the movie search family over a vector store.
package movies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"streamflix-rag/internal/embedding"
	"streamflix-rag/internal/metrics"
	"streamflix-rag/internal/vectorstore"
	"streamflix-rag/pkg/logging/logging"
)

const (
	IndexName = "movies"
	KeyPrefix = "movie:"

	DefaultNumResults        = 5
	DefaultDistanceThreshold = 0.5
	DefaultHybridAlpha       = 0.5
	// range queries look further than the result count of other searches
	rangeNumResults = 20
)

var ErrEmptyQuery = errors.New("movies: query is empty")

// Search modes, also used as the search_type of responses.
const (
	ModeVector   = "vector"
	ModeFiltered = "filtered"
	ModeKeyword  = "keyword"
	ModeHybrid   = "hybrid"
	ModeRange    = "range"
)

// Schema is the movie index: genre is a tag, rating numeric, and title and
// description are full text.
func Schema(dims int) vectorstore.Schema {
	return vectorstore.Schema{
		Name:    IndexName,
		Prefix:  KeyPrefix,
		Dims:    dims,
		Tags:    []string{"genre"},
		Text:    []string{"title", "description"},
		Numeric: []string{"rating"},
	}
}

type Movie struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Genre       string  `json:"genre"`
	Rating      float64 `json:"rating"`
	Description string  `json:"description"`
}

// Result is one hit. Only the scores of the search that produced it are set.
type Result struct {
	Title       string  `json:"title"`
	Genre       string  `json:"genre"`
	Rating      float64 `json:"rating"`
	Description string  `json:"description"`

	Distance         *float64 `json:"distance,omitempty"`
	Similarity       *float64 `json:"similarity,omitempty"`
	Score            *float64 `json:"score,omitempty"`
	HybridScore      *float64 `json:"hybrid_score,omitempty"`
	VectorSimilarity *float64 `json:"vector_similarity,omitempty"`
	TextScore        *float64 `json:"text_score,omitempty"`
}

type SearchEngine struct {
	store    vectorstore.Store
	embedder embedding.Embedder
	logger   *zap.Logger
}

func NewSearchEngine(store vectorstore.Store, embedder embedding.Embedder, logger *zap.Logger) *SearchEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchEngine{store: store, embedder: embedder, logger: logger.Named("movies")}
}

func (e *SearchEngine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("movies: embed query: %w", err)
	}
	return vec, nil
}

// Vector is plain KNN over description embeddings.
func (e *SearchEngine) Vector(ctx context.Context, query string, k int) ([]Result, error) {
	return e.nearest(ctx, ModeVector, query, k, nil)
}

// Filtered is KNN restricted by genre and minimum rating. An empty genre or
// "all" means any genre; minRating <= 0 means any rating.
func (e *SearchEngine) Filtered(ctx context.Context, query, genre string, minRating float64, k int) ([]Result, error) {
	f := &vectorstore.Filter{}
	if g := strings.ToLower(strings.TrimSpace(genre)); g != "" && g != "all" {
		f.Tags = map[string]string{"genre": g}
	}
	if minRating > 0 {
		f.MinNumeric = map[string]float64{"rating": minRating}
	}
	return e.nearest(ctx, ModeFiltered, query, k, f)
}

func (e *SearchEngine) nearest(ctx context.Context, mode, query string, k int, f *vectorstore.Filter) ([]Result, error) {
	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	matches, err := e.store.Query(ctx, vec, orDefault(k), f)
	if err != nil {
		return nil, fmt.Errorf("movies: %s search: %w", mode, err)
	}
	return e.finish(ctx, mode, query, withDistances(matches)), nil
}

// Range returns movies within threshold cosine distance of the query.
func (e *SearchEngine) Range(ctx context.Context, query string, threshold float64, k int) ([]Result, error) {
	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = DefaultDistanceThreshold
	}
	if k <= 0 {
		k = rangeNumResults
	}
	matches, err := e.store.Range(ctx, vec, threshold, k, nil)
	if err != nil {
		return nil, fmt.Errorf("movies: range search: %w", err)
	}
	return e.finish(ctx, ModeRange, query, withDistances(matches)), nil
}

// Keyword ranks movies by BM25 over the description.
func (e *SearchEngine) Keyword(ctx context.Context, query string, k int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	matches, err := e.store.Keyword(ctx, "description", query, orDefault(k))
	if err != nil {
		return nil, fmt.Errorf("movies: keyword search: %w", err)
	}
	out := make([]Result, len(matches))
	for i, m := range matches {
		out[i] = toResult(m)
		out[i].Score = ptr(m.Score)
	}
	return e.finish(ctx, ModeKeyword, query, out), nil
}

// Hybrid fuses vector and text relevance:
//
//	hybrid = alpha*vector_similarity + (1-alpha)*text_score
//
// vector_similarity is (2-distance)/2 and text_score is BM25 scaled to the
// best text match, so both lie in [0, 1]. alpha 1 is pure vector search.
func (e *SearchEngine) Hybrid(ctx context.Context, query string, alpha float64, k int) ([]Result, error) {
	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("movies: alpha %v outside [0, 1]", alpha)
	}
	k = orDefault(k)
	pool := max(4*k, 20)

	byVector, err := e.store.Query(ctx, vec, pool, nil)
	if err != nil {
		return nil, fmt.Errorf("movies: hybrid vector leg: %w", err)
	}
	byText, err := e.store.Keyword(ctx, "description", query, pool)
	if err != nil {
		return nil, fmt.Errorf("movies: hybrid text leg: %w", err)
	}

	type candidate struct {
		match     vectorstore.Match
		vectorSim float64
		textScore float64
	}
	cands := make(map[string]*candidate, len(byVector)+len(byText))
	order := make([]string, 0, len(byVector)+len(byText))

	for _, m := range byVector {
		cands[m.ID] = &candidate{match: m, vectorSim: (2 - m.Distance) / 2}
		order = append(order, m.ID)
	}

	var best float64
	for _, m := range byText {
		best = max(best, m.Score)
	}
	for _, m := range byText {
		c, ok := cands[m.ID]
		if !ok {
			c = &candidate{match: m}
			if len(m.Vector) == len(vec) {
				c.vectorSim = (2 - embedding.CosineDistance(vec, m.Vector)) / 2
			}
			cands[m.ID] = c
			order = append(order, m.ID)
		}
		if best > 0 {
			c.textScore = m.Score / best
		}
	}

	out := make([]Result, 0, len(order))
	for _, id := range order {
		c := cands[id]
		r := toResult(c.match)
		r.VectorSimilarity = ptr(c.vectorSim)
		r.TextScore = ptr(c.textScore)
		r.HybridScore = ptr(alpha*c.vectorSim + (1-alpha)*c.textScore)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].HybridScore > *out[j].HybridScore })
	if len(out) > k {
		out = out[:k]
	}
	return e.finish(ctx, ModeHybrid, query, out), nil
}

func (e *SearchEngine) finish(ctx context.Context, mode, query string, out []Result) []Result {
	metrics.SearchRequestsTotal.WithLabelValues(mode).Inc()
	logging.FromContextOr(ctx, e.logger).Info("movie search",
		zap.String("search_type", mode),
		zap.String("query", query),
		zap.Int("results", len(out)),
	)
	return out
}

// ReadMovies decodes a JSON array of movies.
func ReadMovies(r io.Reader) ([]Movie, error) {
	var ms []Movie
	if err := json.NewDecoder(r).Decode(&ms); err != nil {
		return nil, fmt.Errorf("movies: decode: %w", err)
	}
	return ms, nil
}

// Ingest rebuilds the index from movies, embedding each description. Movies
// without a description are skipped. IDs default to the position in the slice.
func (e *SearchEngine) Ingest(ctx context.Context, movies []Movie) (int, error) {
	kept := make([]Movie, 0, len(movies))
	for i, m := range movies {
		if strings.TrimSpace(m.Description) == "" {
			e.logger.Warn("skipping movie without description", zap.String("title", m.Title))
			continue
		}
		if m.ID == "" {
			m.ID = strconv.Itoa(i + 1)
		}
		kept = append(kept, m)
	}
	if len(kept) == 0 {
		return 0, errors.New("movies: nothing to ingest")
	}

	texts := make([]string, len(kept))
	for i, m := range kept {
		texts[i] = m.Description
	}
	vecs, err := e.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("movies: embed descriptions: %w", err)
	}

	docs := make([]vectorstore.Document, len(kept))
	for i, m := range kept {
		docs[i] = vectorstore.Document{
			ID: m.ID,
			Fields: map[string]string{
				"title":       m.Title,
				"genre":       strings.ToLower(m.Genre),
				"rating":      strconv.FormatFloat(m.Rating, 'f', -1, 64),
				"description": m.Description,
			},
			Vector: vecs[i],
		}
	}

	if err := e.store.Clear(ctx); err != nil {
		return 0, fmt.Errorf("movies: clear: %w", err)
	}
	if err := e.store.EnsureIndex(ctx); err != nil {
		return 0, fmt.Errorf("movies: create index: %w", err)
	}
	if err := e.store.Upsert(ctx, docs...); err != nil {
		return 0, fmt.Errorf("movies: store: %w", err)
	}
	e.logger.Info("movies ingested", zap.Int("count", len(docs)))
	return len(docs), nil
}

// Clear removes every movie.
func (e *SearchEngine) Clear(ctx context.Context) error {
	if err := e.store.Clear(ctx); err != nil {
		return fmt.Errorf("movies: clear: %w", err)
	}
	e.logger.Info("movie data cleared")
	return nil
}

func (e *SearchEngine) IndexInfo(ctx context.Context) (vectorstore.Info, error) {
	return e.store.Info(ctx)
}

func toResult(m vectorstore.Match) Result {
	rating, _ := strconv.ParseFloat(m.Fields["rating"], 64)
	return Result{
		Title:       valueOr(m.Fields["title"], "Unknown"),
		Genre:       valueOr(m.Fields["genre"], "Unknown"),
		Rating:      rating,
		Description: m.Fields["description"],
	}
}

func withDistances(matches []vectorstore.Match) []Result {
	out := make([]Result, len(matches))
	for i, m := range matches {
		out[i] = toResult(m)
		out[i].Distance = ptr(m.Distance)
		out[i].Similarity = ptr(1 - m.Distance)
	}
	return out
}

func orDefault(k int) int {
	if k <= 0 {
		return DefaultNumResults
	}
	return k
}

func valueOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func ptr(f float64) *float64 { return &f }
