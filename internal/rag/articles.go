package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"streamflix-rag/internal/embedding"
	"streamflix-rag/internal/vectorstore"
)

const (
	HelpIndexName  = "help_articles"
	HelpKeyPrefix  = "help:"
	DefaultTopK    = 3
	ingestBatchLen = 64
)

// HelpSchema is the vector index layout for help articles.
func HelpSchema(dims int) vectorstore.Schema {
	return vectorstore.Schema{
		Name:   HelpIndexName,
		Prefix: HelpKeyPrefix,
		Dims:   dims,
		Tags:   []string{"category"},
		Text:   []string{"title", "content"},
	}
}

// ArticleIndex embeds help articles into a vector store and retrieves them.
type ArticleIndex struct {
	store    vectorstore.Store
	embedder embedding.Embedder
	logger   *zap.Logger
}

func NewArticleIndex(store vectorstore.Store, embedder embedding.Embedder, logger *zap.Logger) *ArticleIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArticleIndex{store: store, embedder: embedder, logger: logger.Named("articles")}
}

// Retrieve returns the k articles nearest to query, most similar first.
func (a *ArticleIndex) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	vec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("articles: embed query: %w", err)
	}
	matches, err := a.store.Query(ctx, vec, k, nil)
	if err != nil {
		return nil, fmt.Errorf("articles: query: %w", err)
	}

	out := make([]Passage, len(matches))
	for i, m := range matches {
		out[i] = Passage{
			ID:         m.Fields["id"],
			Title:      m.Fields["title"],
			Category:   m.Fields["category"],
			Content:    m.Fields["content"],
			Similarity: 1 - m.Distance,
		}
		if out[i].ID == "" {
			out[i].ID = m.ID
		}
	}
	return out, nil
}

// ReadArticles decodes a JSON array of articles.
func ReadArticles(r io.Reader) ([]Article, error) {
	var articles []Article
	if err := json.NewDecoder(r).Decode(&articles); err != nil {
		return nil, fmt.Errorf("articles: decode: %w", err)
	}
	for i, art := range articles {
		if art.ID == "" || art.Title == "" || art.Content == "" {
			return nil, fmt.Errorf("articles: entry %d needs id, title and content", i)
		}
	}
	return articles, nil
}

// Ingest replaces the indexed articles. Title and content are embedded together.
func (a *ArticleIndex) Ingest(ctx context.Context, articles []Article) (int, error) {
	if err := a.store.Clear(ctx); err != nil {
		return 0, fmt.Errorf("articles: clear: %w", err)
	}
	if err := a.store.EnsureIndex(ctx); err != nil {
		return 0, fmt.Errorf("articles: create index: %w", err)
	}

	for start := 0; start < len(articles); start += ingestBatchLen {
		end := min(start+ingestBatchLen, len(articles))
		batch := articles[start:end]

		texts := make([]string, len(batch))
		for i, art := range batch {
			texts[i] = art.Title + "\n" + art.Content
		}
		vecs, err := a.embedder.EmbedMany(ctx, texts)
		if err != nil {
			return start, fmt.Errorf("articles: embed: %w", err)
		}

		docs := make([]vectorstore.Document, len(batch))
		for i, art := range batch {
			docs[i] = vectorstore.Document{
				ID: art.ID,
				Fields: map[string]string{
					"id":       art.ID,
					"title":    art.Title,
					"category": art.Category,
					"content":  art.Content,
				},
				Vector: vecs[i],
			}
		}
		if err := a.store.Upsert(ctx, docs...); err != nil {
			return start, fmt.Errorf("articles: store: %w", err)
		}
	}

	a.logger.Info("help articles ingested",
		zap.Int("count", len(articles)),
		zap.String("index", a.store.Schema().Name),
	)
	return len(articles), nil
}

// EnsureIngested ingests articles only when the index is missing or empty.
func (a *ArticleIndex) EnsureIngested(ctx context.Context, articles []Article) (bool, error) {
	info, err := a.store.Info(ctx)
	if err == nil && info.Exists && info.Docs > 0 {
		a.logger.Info("help articles index present", zap.Int("num_docs", info.Docs))
		return false, nil
	}
	if err != nil {
		a.logger.Warn("could not check help index, ingesting", zap.Error(err))
	}
	if _, err := a.Ingest(ctx, articles); err != nil {
		return false, err
	}
	return true, nil
}

const (
	IndexActive     = "active"
	IndexNotCreated = "not_created"
	IndexError      = "error"
)

type IndexStats struct {
	IndexName   string `json:"index_name"`
	NumArticles int    `json:"num_articles"`
	IndexStatus string `json:"index_status"`
	Error       string `json:"error,omitempty"`
}

func (a *ArticleIndex) Stats(ctx context.Context) IndexStats {
	st := IndexStats{IndexName: a.store.Schema().Name}
	info, err := a.store.Info(ctx)
	switch {
	case err != nil:
		st.IndexStatus = IndexError
		st.Error = err.Error()
	case !info.Exists:
		st.IndexStatus = IndexNotCreated
	default:
		st.IndexStatus = IndexActive
		st.NumArticles = info.Docs
	}
	return st
}
