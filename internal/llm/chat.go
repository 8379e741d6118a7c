package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const maxMessageSize = 512 * 1024 // per message content

func (c *client) ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	if req == nil {
		return nil, errors.New("llmclient: request is nil")
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("llmclient: invalid request: %w", err)
	}
	for i, m := range req.Messages {
		if len(m.Content) > maxMessageSize {
			return nil, fmt.Errorf(
				"llmclient: message[%d] content too large (%d bytes, max %d)",
				i, len(m.Content), maxMessageSize,
			)
		}
	}

	c.logger.Debug("chat completion starting",
		zap.String("model", req.Model),
		zap.Int("message_count", len(req.Messages)),
	)

	pReq := providerChatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
	}

	var pResp providerChatResponse
	if err := c.post(ctx, "/v1/chat/completions", pReq, &pResp); err != nil {
		c.logger.Error("chat completion failed", zap.Error(err), since(start))
		return nil, err
	}

	if len(pResp.Choices) == 0 {
		c.logger.Error("llm provider returned no choices", zap.String("model", req.Model))
		return nil, errors.New("llmclient: provider returned no choices")
	}

	out := &ChatResponse{
		ID:      pResp.ID,
		Created: time.Unix(pResp.Created, 0),
		Model:   pResp.Model,
		Choices: make([]ChatChoice, 0, len(pResp.Choices)),
		Usage:   toUsage(pResp.Usage),
	}
	for _, ch := range pResp.Choices {
		out.Choices = append(out.Choices, ChatChoice{
			Index:        ch.Index,
			Message:      ch.Message,
			FinishReason: ch.FinishReason,
		})
	}

	c.logger.Info("chat completion completed",
		zap.String("model", out.Model),
		zap.Int("prompt_tokens", out.Usage.PromptTokens),
		zap.Int("completion_tokens", out.Usage.CompletionTokens),
		since(start),
	)
	return out, nil
}

// toUsage never returns nil so callers can report zero usage.
func toUsage(u *providerUsage) *Usage {
	out := &Usage{}
	if u != nil {
		out.PromptTokens = u.PromptTokens
		out.CompletionTokens = u.CompletionTokens
		out.TotalTokens = u.TotalTokens
	}
	return out
}
