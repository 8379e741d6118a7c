package vectorstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func movieSchema() Schema {
	return Schema{
		Name:    "movies",
		Prefix:  "movie:",
		Dims:    2,
		Tags:    []string{"genre"},
		Text:    []string{"title", "description"},
		Numeric: []string{"rating"},
	}
}

func seedMovies(t *testing.T, s Store) {
	t.Helper()
	err := s.Upsert(context.Background(),
		Document{ID: "1", Vector: []float32{1, 0}, Fields: map[string]string{
			"title": "Space Run", "genre": "Action", "rating": "8.1",
			"description": "a space pilot races across the galaxy",
		}},
		Document{ID: "2", Vector: []float32{0.8, 0.6}, Fields: map[string]string{
			"title": "Quiet Harbor", "genre": "drama", "rating": "7.2",
			"description": "a fishing village keeps a quiet secret",
		}},
		Document{ID: "3", Vector: []float32{0, 1}, Fields: map[string]string{
			"title": "Laugh Track", "genre": "comedy", "rating": "6.0",
			"description": "a sitcom writer and a space alien share a flat in space",
		}},
	)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
}

func TestMemoryQueryOrdersByDistance(t *testing.T) {
	s := NewMemory(movieSchema(), 0)
	seedMovies(t, s)

	got, err := s.Query(context.Background(), []float32{1, 0}, 2, nil)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].ID != "1" || got[1].ID != "2" {
		t.Fatalf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].Distance != 0 {
		t.Fatalf("expected exact match distance 0, got %v", got[0].Distance)
	}
}

func TestMemoryFilter(t *testing.T) {
	s := NewMemory(movieSchema(), 0)
	seedMovies(t, s)
	ctx := context.Background()

	got, err := s.Query(ctx, []float32{0, 1}, 5, &Filter{Tags: map[string]string{"genre": "ACTION"}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("expected only the action movie, got %+v", got)
	}

	got, err = s.Query(ctx, []float32{0, 1}, 5, &Filter{MinNumeric: map[string]float64{"rating": 7}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 movies rated >= 7, got %d", len(got))
	}
}

func TestMemoryRange(t *testing.T) {
	s := NewMemory(movieSchema(), 0)
	seedMovies(t, s)

	// distance(1,0 ; 0.8,0.6) = 0.2, distance(1,0 ; 0,1) = 1
	got, err := s.Range(context.Background(), []float32{1, 0}, 0.25, 10, nil)
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches within 0.25, got %d", len(got))
	}
}

func TestMemoryKeyword(t *testing.T) {
	s := NewMemory(movieSchema(), 0)
	seedMovies(t, s)

	got, err := s.Keyword(context.Background(), "description", "space", 10)
	if err != nil {
		t.Fatalf("Keyword failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 keyword matches, got %d", len(got))
	}
	// "space" appears twice in the comedy description
	if got[0].ID != "3" {
		t.Fatalf("expected doc 3 ranked first, got %s", got[0].ID)
	}
	if got[0].Score <= got[1].Score {
		t.Fatalf("scores not descending: %v, %v", got[0].Score, got[1].Score)
	}
}

func TestMemoryTTL(t *testing.T) {
	s := NewMemory(movieSchema(), 0)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	if err := s.Upsert(ctx, Document{ID: "x", Vector: []float32{1, 0}, TTL: time.Minute}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Fatalf("expected 1 doc, got %d", n)
	}

	now = now.Add(2 * time.Minute)
	got, err := s.Query(ctx, []float32{1, 0}, 1, nil)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected expired document to be hidden")
	}
}

func TestMemoryCapacityEvictsOldest(t *testing.T) {
	s := NewMemory(movieSchema(), 2)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Upsert(ctx, Document{ID: id, Vector: []float32{1, 0}}); err != nil {
			t.Fatalf("Upsert %s failed: %v", id, err)
		}
	}

	got, _ := s.Query(ctx, []float32{1, 0}, 10, nil)
	if len(got) != 2 {
		t.Fatalf("expected capacity 2, got %d", len(got))
	}
	for _, m := range got {
		if m.ID == "a" {
			t.Fatalf("oldest document should have been evicted")
		}
	}
}

func TestMemoryRejectsWrongDims(t *testing.T) {
	s := NewMemory(movieSchema(), 0)
	ctx := context.Background()

	err := s.Upsert(ctx, Document{ID: "x", Vector: []float32{1, 0, 0}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	_, err = s.Query(ctx, []float32{1}, 1, nil)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch on query, got %v", err)
	}
}

func TestMemoryClearAndInfo(t *testing.T) {
	s := NewMemory(movieSchema(), 0)
	ctx := context.Background()

	info, _ := s.Info(ctx)
	if info.Exists {
		t.Fatalf("fresh store should report no index")
	}

	seedMovies(t, s)
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	info, _ = s.Info(ctx)
	if !info.Exists || info.Docs != 0 || info.Name != "movies" {
		t.Fatalf("unexpected info after clear: %+v", info)
	}
}

func TestFactory(t *testing.T) {
	if _, err := New(Config{Backend: BackendRedis}, movieSchema(), Clients{}); err == nil {
		t.Fatalf("expected error for redis backend without client")
	}
	if _, err := New(Config{Backend: "cassandra"}, movieSchema(), Clients{}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	s, err := New(Config{}, movieSchema(), Clients{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Fatalf("expected memory backend by default, got %T", s)
	}
}
