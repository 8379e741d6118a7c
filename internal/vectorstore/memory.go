package vectorstore

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"streamflix-rag/internal/embedding"
)

type memoryEntry struct {
	doc       Document
	expiresAt time.Time // zero means never
	seq       uint64
}

// Memory is a brute-force in-process Store for development and tests.
// When more than capacity documents are held, the oldest inserted are evicted.
type Memory struct {
	schema   Schema
	capacity int

	mu      sync.RWMutex
	items   map[string]memoryEntry
	seq     uint64
	created bool
	now     func() time.Time
}

// NewMemory returns an empty store. capacity <= 0 means unbounded.
func NewMemory(schema Schema, capacity int) *Memory {
	return &Memory{
		schema:   schema,
		capacity: capacity,
		items:    make(map[string]memoryEntry),
		now:      time.Now,
	}
}

func (m *Memory) Schema() Schema { return m.schema }

func (m *Memory) EnsureIndex(_ context.Context) error {
	m.mu.Lock()
	m.created = true
	m.mu.Unlock()
	return nil
}

func (m *Memory) Upsert(ctx context.Context, docs ...Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateDocs(m.schema, docs); err != nil {
		return err
	}

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.created = true
	for _, d := range docs {
		// decouple from caller's buffers
		vec := make([]float32, len(d.Vector))
		copy(vec, d.Vector)

		entry := memoryEntry{
			doc: Document{ID: d.ID, Fields: copyFields(d.Fields), Vector: vec, TTL: d.TTL},
		}
		if d.TTL > 0 {
			entry.expiresAt = now.Add(d.TTL)
		}
		m.seq++
		entry.seq = m.seq
		m.items[d.ID] = entry
	}
	m.evictLocked(now)
	return nil
}

// evictLocked drops expired entries, then the oldest ones beyond capacity.
func (m *Memory) evictLocked(now time.Time) {
	if m.capacity <= 0 || len(m.items) <= m.capacity {
		return
	}
	for id, e := range m.items {
		if e.expired(now) {
			delete(m.items, id)
		}
	}
	for len(m.items) > m.capacity {
		var (
			oldestID  string
			oldestSeq uint64 = math.MaxUint64
		)
		for id, e := range m.items {
			if e.seq < oldestSeq {
				oldestID, oldestSeq = id, e.seq
			}
		}
		delete(m.items, oldestID)
	}
}

func (m *Memory) Delete(ctx context.Context, ids ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	for _, id := range ids {
		delete(m.items, id)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.items = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, e := range m.items {
		if !e.expired(now) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Info(ctx context.Context) (Info, error) {
	n, err := m.Count(ctx)
	if err != nil {
		return Info{}, err
	}
	m.mu.RLock()
	created := m.created
	m.mu.RUnlock()
	return Info{Name: m.schema.Name, Exists: created, Docs: n}, nil
}

func (m *Memory) Query(ctx context.Context, vec []float32, k int, filter *Filter) ([]Match, error) {
	return m.Range(ctx, vec, math.Inf(1), k, filter)
}

func (m *Memory) Range(ctx context.Context, vec []float32, maxDistance float64, k int, filter *Filter) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkQueryVector(m.schema, vec); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	now := m.now()
	m.mu.RLock()
	out := make([]Match, 0, len(m.items))
	for _, e := range m.items {
		if e.expired(now) || !matchesFilter(e.doc.Fields, filter) {
			continue
		}
		d := embedding.CosineDistance(vec, e.doc.Vector)
		if d > maxDistance {
			continue
		}
		out = append(out, Match{Document: e.doc, Distance: d})
	}
	m.mu.RUnlock()

	sortByDistance(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Keyword scores documents with Okapi BM25 over the whitespace-tokenized field.
func (m *Memory) Keyword(ctx context.Context, field, text string, k int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := terms(text)
	if len(query) == 0 || k <= 0 {
		return nil, nil
	}

	now := m.now()
	m.mu.RLock()
	type candidate struct {
		doc Document
		tf  map[string]int
		len int
	}
	var (
		cands    []candidate
		totalLen int
	)
	df := make(map[string]int)
	for _, e := range m.items {
		if e.expired(now) {
			continue
		}
		words := terms(e.doc.Fields[field])
		tf := make(map[string]int, len(words))
		for _, w := range words {
			tf[w]++
		}
		for _, q := range uniq(query) {
			if tf[q] > 0 {
				df[q]++
			}
		}
		cands = append(cands, candidate{doc: e.doc, tf: tf, len: len(words)})
		totalLen += len(words)
	}
	m.mu.RUnlock()

	if len(cands) == 0 || totalLen == 0 {
		return nil, nil
	}
	n := float64(len(cands))
	avgLen := float64(totalLen) / n

	var out []Match
	for _, c := range cands {
		var score float64
		for _, q := range uniq(query) {
			f := float64(c.tf[q])
			if f == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[q])+0.5)/(float64(df[q])+0.5))
			score += idf * f * (bm25K1 + 1) / (f + bm25K1*(1-bm25B+bm25B*float64(c.len)/avgLen))
		}
		if score > 0 {
			out = append(out, Match{Document: c.doc, Score: score})
		}
	}

	sortByScore(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func matchesFilter(fields map[string]string, f *Filter) bool {
	if f.empty() {
		return true
	}
	for field, want := range f.Tags {
		if !strings.EqualFold(strings.TrimSpace(fields[field]), strings.TrimSpace(want)) {
			return false
		}
	}
	for field, floor := range f.MinNumeric {
		v, err := strconv.ParseFloat(fields[field], 64)
		if err != nil || v < floor {
			return false
		}
	}
	return true
}

func uniq(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := words[:0:0]
	for _, w := range words {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}
