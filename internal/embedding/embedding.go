// Package embedding turns text into unit-length vectors and compares them.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"streamflix-rag/internal/llm"
)

// ErrEmptyText is returned when asked to embed blank input.
var ErrEmptyText = errors.New("embedding: empty text")

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedMany returns one vector per text, in order.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	// Model identifies the vector space. Vectors from different models
	// must never be compared.
	Model() string
}

// LLMEmbedder calls the upstream /v1/embeddings endpoint.
type LLMEmbedder struct {
	client llm.Client
	model  string
	logger *zap.Logger
}

func NewLLMEmbedder(client llm.Client, model string, logger *zap.Logger) *LLMEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMEmbedder{
		client: client,
		model:  model,
		logger: logger.Named("embedding"),
	}
}

func (e *LLMEmbedder) Model() string { return e.model }

func (e *LLMEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *LLMEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, ErrEmptyText
		}
	}

	resp, err := e.client.Embeddings(ctx, &llm.EmbeddingRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}

	out := make([][]float32, len(resp.Vectors))
	for i, v := range resp.Vectors {
		out[i] = Normalize(v)
	}

	e.logger.Debug("embedded texts",
		zap.Int("count", len(texts)),
		zap.String("model", e.model),
	)
	return out, nil
}

// Normalize scales vec to unit length. Zero vectors are returned unchanged.
func Normalize(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude == 0 {
		return vec
	}

	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / magnitude)
	}
	return out
}

// CosineDistance returns 1 - cos(a, b), in [0, 2].
// A zero vector is treated as orthogonal to everything (distance 1).
// Mismatched lengths yield the maximum distance.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}

	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// float error can push |cos| slightly past 1
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return 1 - cos
}
