package rag

import (
	"context"
	"errors"

	"streamflix-rag/internal/guardrail"
	"streamflix-rag/internal/pii"
	"streamflix-rag/internal/semcache"
)

var (
	ErrEmptyQuery = errors.New("rag: query is empty")
	// ErrGeneration wraps any failure of the generation call.
	ErrGeneration = errors.New("rag: generation failed")
	// ErrGuardrailUnavailable is returned when the scope check cannot run.
	// Queries are never answered unchecked.
	ErrGuardrailUnavailable = errors.New("rag: scope guardrail unavailable")
)

// NoResultsMessage is answered when retrieval finds nothing.
const NoResultsMessage = "I couldn't find any articles matching your question. Please try rephrasing or contact our support team for assistance."

// Article is a help-center document as ingested.
type Article struct {
	ID       string `json:"id" validate:"required"`
	Title    string `json:"title" validate:"required"`
	Category string `json:"category"`
	Content  string `json:"content" validate:"required"`
}

// Passage is an article returned by retrieval, with its similarity to the query.
type Passage struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResponse struct {
	Answer          string      `json:"answer"`
	Sources         []Passage   `json:"sources"`
	FromCache       bool        `json:"from_cache"`
	CacheSimilarity *float64    `json:"cache_similarity"`
	TokenUsage      *TokenUsage `json:"token_usage"`
	Blocked         bool        `json:"blocked"`
}

// The orchestrator's collaborators. Guardrail and Cache are optional.

type Guardrail interface {
	Classify(ctx context.Context, query string) (guardrail.RouteMatch, error)
}

type Cache interface {
	Check(ctx context.Context, query string) semcache.Result
	Store(ctx context.Context, query, response string) bool
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Passage, error)
}

type Generator interface {
	Generate(ctx context.Context, system, user string) (string, TokenUsage, error)
}

type CachePolicy interface {
	PermitsCache(query, response string) pii.Decision
}
