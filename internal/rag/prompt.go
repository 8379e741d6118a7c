package rag

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a helpful customer support assistant for StreamFlix, a streaming service similar to Netflix.

Your role is to help users with their questions about the service. Use the provided help articles to answer questions accurately and helpfully.

Guidelines:
- Be friendly, concise, and helpful
- Use the information from the provided articles to answer
- If the articles don't fully answer the question, acknowledge what you can help with
- Format your response with clear steps when appropriate
- Don't make up information not in the articles
- Keep responses focused and not too long`

// buildContext numbers passages from 1 and separates them with "---".
func buildContext(passages []Passage) string {
	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = fmt.Sprintf("Article %d: %s\nCategory: %s\nContent: %s\n", i+1, p.Title, p.Category, p.Content)
	}
	return strings.Join(parts, "\n---\n")
}

func buildUserPrompt(query string, passages []Passage) string {
	return fmt.Sprintf(`Based on the following help articles, please answer the user's question.

HELP ARTICLES:
%s

USER QUESTION: %s

Please provide a helpful, conversational response that addresses the user's question using the information from the articles above.`,
		buildContext(passages), query)
}

// Suggestions are sample questions shown by the chat UI.
func Suggestions() []string {
	return []string{
		"Why can't I watch this movie?",
		"How do I change my plan?",
		"Why is playback blurry?",
		"I forgot my password",
		"How to download for offline viewing?",
		"Video keeps buffering",
		"How to set up parental controls?",
		"Payment was declined",
	}
}
