package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamflix-rag/internal/guardrail"
)

// clearEnv blanks every variable Load reads so host settings cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ENV", "PORT", "VECTOR_BACKEND", "MEMORY_CAPACITY", "REDIS_ADDR", "REDIS_PASSWORD",
		"REDIS_DB", "POSTGRES_DSN", "LLM_BASE_URL", "LLM_API_KEY", "OPENAI_API_KEY",
		"CHAT_MODEL", "EMBEDDING_MODEL", "EMBEDDING_DIMS", "UPSTREAM_TIMEOUT", "LLM_MAX_RETRIES",
		"EMBEDDING_CACHE_TTL", "CACHE_ENABLED", "CACHE_NAME", "CACHE_TTL",
		"CACHE_DISTANCE_THRESHOLD", "GUARDRAIL_ENABLED", "GUARDRAIL_ROUTES_FILE", "HELP_TOP_K",
		"AUTO_INGEST", "REQUEST_TIMEOUT", "MAX_BODY_BYTES", "CODESPACE_NAME",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 0.5, cfg.CacheDistanceThreshold)
	assert.Equal(t, 10*time.Minute, cfg.EmbeddingCacheTTL)
	assert.Equal(t, 3, cfg.HelpTopK)
	assert.True(t, cfg.CacheEnabled)
	assert.True(t, cfg.GuardrailEnabled)
	assert.False(t, cfg.IsDev())
}

func TestLoadOpenAIKeyFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-openai", cfg.LLMAPIKey)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("VECTOR_BACKEND", "Redis")
	t.Setenv("CACHE_TTL", "120")
	t.Setenv("UPSTREAM_TIMEOUT", "5s")
	t.Setenv("CACHE_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Backend)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
	assert.False(t, cfg.CacheEnabled)
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing key", map[string]string{}, "LLM_API_KEY is required"},
		{"bad backend", map[string]string{"LLM_API_KEY": "k", "VECTOR_BACKEND": "weaviate"}, "VECTOR_BACKEND must be one of"},
		{"pgvector needs dsn", map[string]string{"LLM_API_KEY": "k", "VECTOR_BACKEND": "pgvector"}, "POSTGRES_DSN is required"},
		{"threshold range", map[string]string{"LLM_API_KEY": "k", "CACHE_DISTANCE_THRESHOLD": "3"}, "CACHE_DISTANCE_THRESHOLD must be less than or equal to 2"},
		{"not an int", map[string]string{"LLM_API_KEY": "k", "HELP_TOP_K": "three"}, "HELP_TOP_K"},
		{"not a bool", map[string]string{"LLM_API_KEY": "k", "AUTO_INGEST": "maybe"}, "AUTO_INGEST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.AllowedOrigins())

	cfg.CodespaceName = "fluffy-space"
	origins := cfg.AllowedOrigins()
	assert.Len(t, origins, 5)
	assert.Contains(t, origins, "https://fluffy-space-8000.app.github.dev")
}

func TestLoadRoutesBuiltin(t *testing.T) {
	routes, err := LoadRoutes("")
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, guardrail.StreamFlixRouteName, routes[0].Name)
}

func TestLoadRoutesFromFile(t *testing.T) {
	t.Setenv("SUPPORT_ROUTE", "support")
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
routes:
  - name: ${SUPPORT_ROUTE}
    references: ["reset password", "video buffering"]
  - name: billing
    distance_threshold: 0.3
    references: ["refund"]
`), 0o600))

	routes, err := LoadRoutes(path)
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "support", routes[0].Name)
	assert.Equal(t, guardrail.DefaultDistanceThreshold, routes[0].DistanceThreshold)
	assert.Equal(t, 0.3, routes[1].DistanceThreshold)
}

func TestParseRoutesRejectsInvalid(t *testing.T) {
	_, err := ParseRoutes([]byte("routes:\n  - name: empty\n    references: []\n"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "references"))

	_, err = ParseRoutes([]byte("routes: []\n"))
	assert.Error(t, err)

	_, err = ParseRoutes([]byte("routes: ["))
	assert.Error(t, err)
}
