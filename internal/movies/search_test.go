package movies

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"streamflix-rag/internal/embedding/embeddingtest"
	"streamflix-rag/internal/vectorstore"
)

var catalogue = []Movie{
	{Title: "Space Voyage", Genre: "Sci-Fi", Rating: 8.1, Description: "astronauts travel through space to a distant galaxy"},
	{Title: "Robot Uprising", Genre: "Action", Rating: 7.2, Description: "robots fight humans in a future war"},
	{Title: "Love in Paris", Genre: "Romance", Rating: 6.5, Description: "two strangers fall in love in paris"},
	{Title: "Galaxy Heist", Genre: "Action", Rating: 8.6, Description: "thieves steal a ship from a space station"},
	{Title: "Laugh Factory", Genre: "Comedy", Rating: 5.9, Description: "comedians fight to save a failing club"},
}

func newEngine(t *testing.T) *SearchEngine {
	t.Helper()
	descs := make([]string, len(catalogue))
	for i, m := range catalogue {
		descs[i] = m.Description
	}
	emb := embeddingtest.NewBagOfWords(descs...)
	e := NewSearchEngine(vectorstore.NewMemory(Schema(emb.Dims()), 0), emb, zaptest.NewLogger(t))

	n, err := e.Ingest(context.Background(), catalogue)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if n != len(catalogue) {
		t.Fatalf("ingested %d, want %d", n, len(catalogue))
	}
	return e
}

func titles(rs []Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Title
	}
	return out
}

func TestVectorSearchOrder(t *testing.T) {
	e := newEngine(t)

	rs, err := e.Vector(context.Background(), "space galaxy", 2)
	if err != nil {
		t.Fatalf("vector: %v", err)
	}
	got := strings.Join(titles(rs), ",")
	if got != "Space Voyage,Galaxy Heist" {
		t.Fatalf("order = %s", got)
	}
	if rs[0].Distance == nil || rs[0].Similarity == nil {
		t.Fatal("vector results must carry distance and similarity")
	}
	if d := *rs[0].Distance + *rs[0].Similarity; d < 0.999 || d > 1.001 {
		t.Fatalf("similarity should be 1 - distance, got sum %v", d)
	}
	if rs[0].Rating != 8.1 || rs[0].Genre != "sci-fi" {
		t.Fatalf("fields not round-tripped: %+v", rs[0])
	}
}

func TestFilteredSearch(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	rs, err := e.Filtered(ctx, "space galaxy", "Action", 0, 5)
	if err != nil {
		t.Fatalf("filtered: %v", err)
	}
	if len(rs) != 2 || rs[0].Title != "Galaxy Heist" {
		t.Fatalf("genre filter: %v", titles(rs))
	}
	for _, r := range rs {
		if r.Genre != "action" {
			t.Fatalf("unexpected genre %q", r.Genre)
		}
	}

	rs, err = e.Filtered(ctx, "space galaxy", "action", 8, 5)
	if err != nil {
		t.Fatalf("filtered: %v", err)
	}
	if len(rs) != 1 || rs[0].Title != "Galaxy Heist" {
		t.Fatalf("genre+rating filter: %v", titles(rs))
	}

	rs, err = e.Filtered(ctx, "space galaxy", "all", 8, 5)
	if err != nil {
		t.Fatalf("filtered: %v", err)
	}
	if got := strings.Join(titles(rs), ","); got != "Space Voyage,Galaxy Heist" {
		t.Fatalf("rating only: %s", got)
	}
}

func TestKeywordSearch(t *testing.T) {
	e := newEngine(t)

	rs, err := e.Keyword(context.Background(), "fight", 5)
	if err != nil {
		t.Fatalf("keyword: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("want 2 matches, got %v", titles(rs))
	}
	for _, r := range rs {
		if r.Score == nil || *r.Score <= 0 {
			t.Fatalf("keyword result without score: %+v", r)
		}
		if r.Distance != nil {
			t.Fatalf("keyword result should not carry distance")
		}
	}
}

func TestRangeSearch(t *testing.T) {
	e := newEngine(t)

	rs, err := e.Range(context.Background(), "space galaxy", 0.5, 0)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(rs) != 1 || rs[0].Title != "Space Voyage" {
		t.Fatalf("range 0.5: %v", titles(rs))
	}

	rs, err = e.Range(context.Background(), "space galaxy", 0.8, 0)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("range 0.8: %v", titles(rs))
	}
}

func TestHybridSearch(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	rs, err := e.Hybrid(ctx, "robots fight", 0, 3)
	if err != nil {
		t.Fatalf("hybrid: %v", err)
	}
	if len(rs) == 0 || rs[0].Title != "Robot Uprising" {
		t.Fatalf("pure text: %v", titles(rs))
	}
	if *rs[0].TextScore != 1 || *rs[0].HybridScore != 1 {
		t.Fatalf("best text match should be normalized to 1: %+v", rs[0])
	}

	rs, err = e.Hybrid(ctx, "space galaxy", 1, 2)
	if err != nil {
		t.Fatalf("hybrid: %v", err)
	}
	if got := strings.Join(titles(rs), ","); got != "Space Voyage,Galaxy Heist" {
		t.Fatalf("pure vector: %s", got)
	}
	for _, r := range rs {
		if r.VectorSimilarity == nil || *r.HybridScore != *r.VectorSimilarity {
			t.Fatalf("alpha 1 should score by vector similarity only: %+v", r)
		}
	}

	if _, err := e.Hybrid(ctx, "space", 1.5, 2); err == nil {
		t.Fatal("expected alpha range error")
	}
}

func TestEmptyQuery(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, err := e.Vector(ctx, " ", 3); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("vector: %v", err)
	}
	if _, err := e.Keyword(ctx, "", 3); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("keyword: %v", err)
	}
}

func TestIngestSkipsMissingDescriptionAndClear(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	n, err := e.Ingest(ctx, []Movie{
		{Title: "No Plot", Genre: "drama"},
		{Title: "Space Voyage", Genre: "Sci-Fi", Rating: 8.1, Description: "astronauts travel through space"},
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if n != 1 {
		t.Fatalf("ingested %d, want 1", n)
	}

	info, err := e.IndexInfo(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Docs != 1 || info.Name != IndexName {
		t.Fatalf("info = %+v", info)
	}

	if err := e.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	info, _ = e.IndexInfo(ctx)
	if info.Docs != 0 {
		t.Fatalf("docs after clear = %d", info.Docs)
	}

	if _, err := e.Ingest(ctx, []Movie{{Title: "No Plot"}}); err == nil {
		t.Fatal("expected error when nothing can be ingested")
	}
}

func TestReadMovies(t *testing.T) {
	ms, err := ReadMovies(strings.NewReader(`[{"title":"A","genre":"action","rating":7.5,"description":"d"}]`))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(ms) != 1 || ms[0].Rating != 7.5 {
		t.Fatalf("got %+v", ms)
	}
}
