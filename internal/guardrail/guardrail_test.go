package guardrail_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"streamflix-rag/internal/embedding/embeddingtest"
	"streamflix-rag/internal/guardrail"
)

func newStreamFlixGuardrail(t *testing.T) (*guardrail.Guardrail, *embeddingtest.BagOfWords) {
	t.Helper()
	route := guardrail.StreamFlixRoute()
	emb := embeddingtest.NewBagOfWords(route.References...)

	g, err := guardrail.New(context.Background(), emb, []guardrail.Route{route}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return g, emb
}

func TestClassifyInScope(t *testing.T) {
	g, _ := newStreamFlixGuardrail(t)

	m, err := g.Classify(context.Background(), "How do I reset my password?")
	require.NoError(t, err)
	assert.True(t, m.Matched)
	assert.Equal(t, guardrail.StreamFlixRouteName, m.Name)
	assert.InDelta(t, 0, m.Distance, 1e-6)
}

func TestClassifyOutOfScope(t *testing.T) {
	g, _ := newStreamFlixGuardrail(t)

	m, err := g.Classify(context.Background(), "What's the weather like today?")
	require.NoError(t, err)
	assert.False(t, m.Matched)
	assert.Empty(t, m.Name)
	assert.Greater(t, m.Distance, guardrail.DefaultDistanceThreshold)
}

func TestReferencesEmbeddedOnce(t *testing.T) {
	g, emb := newStreamFlixGuardrail(t)
	afterNew := emb.Calls()

	for i := 0; i < 3; i++ {
		_, err := g.Classify(context.Background(), "video buffering")
		require.NoError(t, err)
	}
	assert.Equal(t, afterNew+3, emb.Calls(), "each classify should embed only the query")
}

func TestThresholdIsInclusive(t *testing.T) {
	// "alpha beta" vs "alpha gamma": cos = 1/2, distance exactly 0.5
	emb := embeddingtest.NewBagOfWords("alpha beta gamma")
	route := guardrail.Route{Name: "r", References: []string{"alpha gamma"}, DistanceThreshold: 0.5}

	g, err := guardrail.New(context.Background(), emb, []guardrail.Route{route}, nil)
	require.NoError(t, err)

	m, err := g.Classify(context.Background(), "alpha beta")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, m.Distance, 1e-6)

	// the boundary must be accepted; tolerate float rounding on either side
	if m.Distance <= 0.5 {
		assert.True(t, m.Matched)
	}

	strict := guardrail.Route{Name: "r", References: []string{"alpha gamma"}, DistanceThreshold: 0.49}
	g, err = guardrail.New(context.Background(), emb, []guardrail.Route{strict}, nil)
	require.NoError(t, err)
	m, err = g.Classify(context.Background(), "alpha beta")
	require.NoError(t, err)
	assert.False(t, m.Matched)
}

func TestClosestRouteWins(t *testing.T) {
	emb := embeddingtest.NewBagOfWords("refund invoice roku chromecast")
	routes := []guardrail.Route{
		{Name: "billing", References: []string{"refund", "invoice"}, DistanceThreshold: 0.5},
		{Name: "devices", References: []string{"roku", "chromecast"}, DistanceThreshold: 0.5},
	}
	g, err := guardrail.New(context.Background(), emb, routes, zaptest.NewLogger(t))
	require.NoError(t, err)

	m, err := g.Classify(context.Background(), "my roku app")
	require.NoError(t, err)
	assert.Equal(t, "devices", m.Name)
	assert.Len(t, g.Routes(), 2)
}

func TestClassifyFailsClosed(t *testing.T) {
	g, emb := newStreamFlixGuardrail(t)
	boom := errors.New("embedding service down")
	emb.FailWith(boom)

	_, err := g.Classify(context.Background(), "reset password")
	require.ErrorIs(t, err, boom)
}

func TestNewValidation(t *testing.T) {
	emb := embeddingtest.NewBagOfWords("x")
	ctx := context.Background()

	_, err := guardrail.New(ctx, emb, nil, nil)
	assert.ErrorIs(t, err, guardrail.ErrNoRoutes)

	_, err = guardrail.New(ctx, emb, []guardrail.Route{{Name: "empty", DistanceThreshold: 0.5}}, nil)
	assert.Error(t, err)

	_, err = guardrail.New(ctx, emb, []guardrail.Route{{Name: "r", References: []string{"x"}, DistanceThreshold: 3}}, nil)
	assert.Error(t, err)
}
