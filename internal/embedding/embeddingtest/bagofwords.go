// Package embeddingtest provides a deterministic Embedder for tests.
package embeddingtest

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"streamflix-rag/internal/embedding"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "can": true, "do": true,
	"for": true, "how": true, "i": true, "in": true, "is": true, "it": true,
	"me": true, "my": true, "not": true, "of": true, "on": true, "s": true,
	"t": true, "the": true, "this": true, "to": true, "was": true, "what": true,
	"why": true, "with": true, "like": true, "keeps": true, "need": true,
}

// BagOfWords counts vocabulary words. Words outside the vocabulary are
// ignored; text with no vocabulary word at all lands on a single extra
// "unknown" axis, so it is orthogonal to every vocabulary phrase.
type BagOfWords struct {
	vocab map[string]int
	model string

	mu    sync.Mutex
	calls int
	err   error
}

// NewBagOfWords builds the vocabulary from the words of phrases.
func NewBagOfWords(phrases ...string) *BagOfWords {
	b := &BagOfWords{vocab: map[string]int{}, model: "bag-of-words"}
	for _, p := range phrases {
		for _, tok := range Tokens(p) {
			if _, ok := b.vocab[tok]; !ok {
				b.vocab[tok] = len(b.vocab)
			}
		}
	}
	return b
}

// WithModel changes the reported model name.
func (b *BagOfWords) WithModel(model string) *BagOfWords {
	b.model = model
	return b
}

// FailWith makes every following call return err. nil restores normal behaviour.
func (b *BagOfWords) FailWith(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

// Calls returns how many texts have been embedded so far.
func (b *BagOfWords) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *BagOfWords) Model() string { return b.model }

func (b *BagOfWords) Dims() int { return len(b.vocab) + 1 }

func (b *BagOfWords) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := b.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (b *BagOfWords) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	err := b.err
	b.calls += len(texts)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, embedding.ErrEmptyText
		}
		out[i] = b.vector(t)
	}
	return out, nil
}

func (b *BagOfWords) vector(text string) []float32 {
	vec := make([]float32, b.Dims())
	known := false
	for _, tok := range Tokens(text) {
		if idx, ok := b.vocab[tok]; ok {
			vec[idx]++
			known = true
		}
	}
	if !known {
		vec[len(vec)-1] = 1
	}
	return embedding.Normalize(vec)
}

// Tokens lowercases text and splits it into words, dropping stopwords.
func Tokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}
