package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"streamflix-rag/internal/config"
	"streamflix-rag/internal/embedding/embeddingtest"
	"streamflix-rag/internal/guardrail"
	"streamflix-rag/internal/rag"
	"streamflix-rag/resources"
)

type stubGenerator struct{ calls int }

func (g *stubGenerator) Generate(context.Context, string, string) (string, rag.TokenUsage, error) {
	g.calls++
	return "Use the Forgot password link on the sign in page.", rag.TokenUsage{TotalTokens: 42}, nil
}

func testConfig() config.Config {
	return config.Config{
		Backend:                "memory",
		MemoryCapacity:         1000,
		EmbeddingDims:          8,
		EmbeddingCacheTTL:      time.Minute,
		CacheEnabled:           true,
		CacheName:              "llmcache",
		CacheTTL:               time.Hour,
		CacheDistanceThreshold: 0.5,
		GuardrailEnabled:       true,
		HelpTopK:               3,
	}
}

func testEmbedder(t *testing.T) *embeddingtest.BagOfWords {
	t.Helper()
	articles, err := rag.ReadArticles(resources.HelpArticles())
	require.NoError(t, err)

	phrases := append([]string{}, guardrail.StreamFlixRoute().References...)
	for _, a := range articles {
		phrases = append(phrases, a.Title, a.Content)
	}
	return embeddingtest.NewBagOfWords(phrases...)
}

func newTestApp(t *testing.T, cfg config.Config) (*App, *stubGenerator) {
	t.Helper()
	gen := &stubGenerator{}
	a, err := New(context.Background(), cfg, zaptest.NewLogger(t),
		WithEmbedder(testEmbedder(t)),
		WithGenerator(gen),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, gen
}

func TestNewWiresEverything(t *testing.T) {
	a, gen := newTestApp(t, testConfig())
	ctx := context.Background()

	require.NotNil(t, a.Guardrail)
	require.NotNil(t, a.Cache)
	require.NoError(t, a.Ping(ctx))

	ingested, err := a.EnsureHelpArticles(ctx)
	require.NoError(t, err)
	assert.True(t, ingested)

	ingested, err = a.EnsureHelpArticles(ctx)
	require.NoError(t, err)
	assert.False(t, ingested, "second call must find the index populated")

	resp, err := a.HelpCenter.Chat(ctx, "How do I reset my password?", true)
	require.NoError(t, err)
	assert.False(t, resp.Blocked)
	assert.NotEmpty(t, resp.Sources)

	resp, err = a.HelpCenter.Chat(ctx, "How do I reset my password?", true)
	require.NoError(t, err)
	assert.True(t, resp.FromCache)
	assert.Equal(t, 1, gen.calls)

	resp, err = a.HelpCenter.Chat(ctx, "What's the weather like today?", true)
	require.NoError(t, err)
	assert.True(t, resp.Blocked)
}

func TestDisabledStagesAreSkipped(t *testing.T) {
	cfg := testConfig()
	cfg.GuardrailEnabled = false
	cfg.CacheEnabled = false
	a, gen := newTestApp(t, cfg)
	ctx := context.Background()

	assert.Nil(t, a.Guardrail)
	assert.Nil(t, a.Cache)

	_, err := a.IngestHelpArticles(ctx, nil)
	require.NoError(t, err)

	resp, err := a.HelpCenter.Chat(ctx, "What's the weather like today?", true)
	require.NoError(t, err)
	assert.False(t, resp.Blocked)
	assert.Equal(t, 1, gen.calls)
}

func TestBadRoutesFileSoftDisablesGuardrail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routes: []\n"), 0o600))

	cfg := testConfig()
	cfg.GuardrailRoutesFile = path
	a, _ := newTestApp(t, cfg)

	assert.Nil(t, a.Guardrail)
	assert.NotNil(t, a.HelpCenter)
}

func TestIngestBundledMovies(t *testing.T) {
	a, _ := newTestApp(t, testConfig())

	n, err := a.IngestMovies(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	info, err := a.Movies.IndexInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, info.Docs)
}

func TestUnknownBackendFails(t *testing.T) {
	cfg := testConfig()
	cfg.Backend = "cassandra"
	_, err := New(context.Background(), cfg, nil, WithEmbedder(testEmbedder(t)), WithGenerator(&stubGenerator{}))
	assert.Error(t, err)
}
