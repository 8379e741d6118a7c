// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"streamflix-rag/internal/validation"
)

type Config struct {
	Env  string `env:"ENV"`
	Port string `env:"PORT" validate:"required,numeric"`

	// Backend selects the vector store for articles, movies and the cache.
	Backend        string `env:"VECTOR_BACKEND" validate:"oneof=memory redis pgvector"`
	MemoryCapacity int    `env:"MEMORY_CAPACITY" validate:"gte=0"`
	RedisAddr      string `env:"REDIS_ADDR" validate:"required_if=Backend redis"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" validate:"gte=0"`
	PostgresDSN    string `env:"POSTGRES_DSN" validate:"required_if=Backend pgvector"`

	LLMBaseURL      string        `env:"LLM_BASE_URL" validate:"required,url"`
	LLMAPIKey       string        `env:"LLM_API_KEY" validate:"required"`
	ChatModel       string        `env:"CHAT_MODEL" validate:"required"`
	EmbeddingModel  string        `env:"EMBEDDING_MODEL" validate:"required"`
	EmbeddingDims   int           `env:"EMBEDDING_DIMS" validate:"gt=0"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" validate:"gt=0"`
	MaxRetries      int           `env:"LLM_MAX_RETRIES" validate:"gte=0,lte=10"`

	EmbeddingCacheTTL time.Duration `env:"EMBEDDING_CACHE_TTL" validate:"gte=0"`

	CacheEnabled           bool          `env:"CACHE_ENABLED"`
	CacheName              string        `env:"CACHE_NAME" validate:"required"`
	CacheTTL               time.Duration `env:"CACHE_TTL" validate:"gt=0"`
	CacheDistanceThreshold float64       `env:"CACHE_DISTANCE_THRESHOLD" validate:"gt=0,lte=2"`

	GuardrailEnabled    bool   `env:"GUARDRAIL_ENABLED"`
	GuardrailRoutesFile string `env:"GUARDRAIL_ROUTES_FILE"`

	HelpTopK       int           `env:"HELP_TOP_K" validate:"gte=1,lte=20"`
	AutoIngest     bool          `env:"AUTO_INGEST"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" validate:"gt=0"`
	MaxBodyBytes   int64         `env:"MAX_BODY_BYTES" validate:"gt=0"`

	// CodespaceName adds the GitHub Codespaces frontend origins to CORS.
	CodespaceName string `env:"CODESPACE_NAME"`
}

// Load reads an optional .env file and then the environment. Set variables
// win over .env entries. The result is validated.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: read .env: %w", err)
	}

	var errs []error
	cfg := Config{
		Env:  getenv("ENV", "production"),
		Port: getenv("PORT", "8000"),

		Backend:        strings.ToLower(getenv("VECTOR_BACKEND", "memory")),
		MemoryCapacity: getInt("MEMORY_CAPACITY", 10000, &errs),
		RedisAddr:      getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getInt("REDIS_DB", 0, &errs),
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),

		LLMBaseURL:      getenv("LLM_BASE_URL", "https://api.openai.com"),
		LLMAPIKey:       firstNonEmpty(os.Getenv("LLM_API_KEY"), os.Getenv("OPENAI_API_KEY")),
		ChatModel:       getenv("CHAT_MODEL", "gpt-4o-mini"),
		EmbeddingModel:  getenv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDims:   getInt("EMBEDDING_DIMS", 1536, &errs),
		UpstreamTimeout: getDuration("UPSTREAM_TIMEOUT", 30*time.Second, &errs),
		MaxRetries:      getInt("LLM_MAX_RETRIES", 2, &errs),

		EmbeddingCacheTTL: getDuration("EMBEDDING_CACHE_TTL", 10*time.Minute, &errs),

		CacheEnabled:           getBool("CACHE_ENABLED", true, &errs),
		CacheName:              getenv("CACHE_NAME", "llmcache"),
		CacheTTL:               getDuration("CACHE_TTL", time.Hour, &errs),
		CacheDistanceThreshold: getFloat("CACHE_DISTANCE_THRESHOLD", 0.5, &errs),

		GuardrailEnabled:    getBool("GUARDRAIL_ENABLED", true, &errs),
		GuardrailRoutesFile: os.Getenv("GUARDRAIL_ROUTES_FILE"),

		HelpTopK:       getInt("HELP_TOP_K", 3, &errs),
		AutoIngest:     getBool("AUTO_INGEST", true, &errs),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 60*time.Second, &errs),
		MaxBodyBytes:   int64(getInt("MAX_BODY_BYTES", 512*1024, &errs)),

		CodespaceName: os.Getenv("CODESPACE_NAME"),
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := validation.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// AllowedOrigins lists the frontend origins accepted by CORS.
func (c Config) AllowedOrigins() []string {
	origins := []string{
		"http://localhost:5173",
		"http://localhost:3000",
	}
	if c.CodespaceName != "" {
		for _, port := range []string{"5173", "3000", "8000"} {
			origins = append(origins, fmt.Sprintf("https://%s-%s.app.github.dev", c.CodespaceName, port))
		}
	}
	return origins
}

func (c Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "development"
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s=%q is not an integer", key, v))
		return def
	}
	return n
}

func getFloat(key string, def float64, errs *[]error) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s=%q is not a number", key, v))
		return def
	}
	return f
}

func getBool(key string, def bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s=%q is not a boolean", key, v))
		return def
	}
	return b
}

// getDuration accepts Go durations ("90s") or plain seconds ("3600").
func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s=%q is not a duration", key, v))
		return def
	}
	return d
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
