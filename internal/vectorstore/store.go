// Package vectorstore holds embedded documents and answers nearest-neighbour,
// distance-range and keyword queries over them.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"
)

var (
	ErrDimensionMismatch = errors.New("vectorstore: vector dimension mismatch")
	ErrInvalidDocument   = errors.New("vectorstore: invalid document")
)

// Schema describes one index. Fields not listed are stored and returned
// but cannot be filtered or searched.
type Schema struct {
	Name    string
	Prefix  string
	Dims    int
	Tags    []string
	Text    []string
	Numeric []string
}

func (s Schema) Validate() error {
	if s.Name == "" {
		return errors.New("vectorstore: schema name is required")
	}
	if s.Dims <= 0 {
		return fmt.Errorf("vectorstore: schema %q needs positive dims", s.Name)
	}
	return nil
}

func (s Schema) hasText(field string) bool {
	for _, f := range s.Text {
		if f == field {
			return true
		}
	}
	return false
}

type Document struct {
	ID     string
	Fields map[string]string
	Vector []float32
	// TTL > 0 lets the backend drop the document on its own.
	TTL time.Duration
}

// Match is a query result. Distance is cosine distance in [0, 2] for vector
// queries; Score is the relevance for keyword queries.
type Match struct {
	Document
	Distance float64
	Score    float64
}

// Filter restricts vector queries. Tag values compare case-insensitively.
type Filter struct {
	Tags       map[string]string
	MinNumeric map[string]float64
}

func (f *Filter) empty() bool {
	return f == nil || (len(f.Tags) == 0 && len(f.MinNumeric) == 0)
}

type Info struct {
	Name   string `json:"index_name"`
	Exists bool   `json:"exists"`
	Docs   int    `json:"num_docs"`
}

type Store interface {
	Schema() Schema
	// EnsureIndex creates the index if it is missing.
	EnsureIndex(ctx context.Context) error
	// Upsert inserts or replaces documents by ID.
	Upsert(ctx context.Context, docs ...Document) error
	Delete(ctx context.Context, ids ...string) error
	// Clear removes every document; the index stays usable.
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Info(ctx context.Context) (Info, error)
	// Query returns up to k documents nearest to vec, nearest first.
	Query(ctx context.Context, vec []float32, k int, filter *Filter) ([]Match, error)
	// Range returns up to k documents within maxDistance of vec, nearest first.
	Range(ctx context.Context, vec []float32, maxDistance float64, k int, filter *Filter) ([]Match, error)
	// Keyword ranks documents by BM25 relevance of text within field.
	Keyword(ctx context.Context, field, text string, k int) ([]Match, error)
}

func validateDocs(s Schema, docs []Document) error {
	for i, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("%w: docs[%d] has no id", ErrInvalidDocument, i)
		}
		if len(d.Vector) != s.Dims {
			return fmt.Errorf("%w: docs[%d] has %d dims, index %q expects %d",
				ErrDimensionMismatch, i, len(d.Vector), s.Name, s.Dims)
		}
	}
	return nil
}

func checkQueryVector(s Schema, vec []float32) error {
	if len(vec) != s.Dims {
		return fmt.Errorf("%w: query has %d dims, index %q expects %d",
			ErrDimensionMismatch, len(vec), s.Name, s.Dims)
	}
	return nil
}

// terms splits free text into lowercase alphanumeric words.
func terms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

func sortByDistance(ms []Match) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Distance < ms[j].Distance })
}

func sortByScore(ms []Match) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Score > ms[j].Score })
}

func copyFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
