package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

func (c *client) Embeddings(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	start := time.Now()

	if req == nil {
		return nil, errors.New("llmclient: request is nil")
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("llmclient: invalid request: %w", err)
	}

	var pResp providerEmbeddingResponse
	err := c.post(ctx, "/v1/embeddings", providerEmbeddingRequest{
		Model: req.Model,
		Input: req.Input,
	}, &pResp)
	if err != nil {
		c.logger.Error("embedding request failed", zap.Error(err), since(start))
		return nil, err
	}

	if len(pResp.Data) != len(req.Input) {
		return nil, fmt.Errorf("llmclient: expected %d embeddings, got %d", len(req.Input), len(pResp.Data))
	}

	// the provider may reorder data; index is authoritative
	vectors := make([][]float32, len(req.Input))
	for _, d := range pResp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("llmclient: embedding index %d out of range", d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("llmclient: empty embedding at index %d", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		vectors[d.Index] = v
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("llmclient: missing embedding for input[%d]", i)
		}
	}

	c.logger.Debug("embedding request completed",
		zap.String("model", pResp.Model),
		zap.Int("inputs", len(req.Input)),
		since(start),
	)

	return &EmbeddingResponse{
		Model:   pResp.Model,
		Vectors: vectors,
		Usage:   toUsage(pResp.Usage),
	}, nil
}
