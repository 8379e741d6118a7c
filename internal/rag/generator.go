package rag

import (
	"context"
	"errors"

	"streamflix-rag/internal/llm"
	"streamflix-rag/internal/metrics"
)

const (
	DefaultChatModel   = "gpt-4o-mini"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 500
)

// LLMGenerator answers with a single chat completion.
type LLMGenerator struct {
	client      llm.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewLLMGenerator(client llm.Client, model string) *LLMGenerator {
	if model == "" {
		model = DefaultChatModel
	}
	return &LLMGenerator{
		client:      client,
		model:       model,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
	}
}

func (g *LLMGenerator) Generate(ctx context.Context, system, user string) (string, TokenUsage, error) {
	resp, err := g.client.ChatCompletion(ctx, &llm.ChatRequest{
		Model: g.model,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", TokenUsage{}, err
	}

	text := resp.Text()
	if text == "" {
		return "", TokenUsage{}, errors.New("empty completion")
	}

	var usage TokenUsage
	if resp.Usage != nil {
		usage = TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	metrics.LLMTokensTotal.WithLabelValues("prompt").Add(float64(usage.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues("completion").Add(float64(usage.CompletionTokens))
	return text, usage, nil
}
