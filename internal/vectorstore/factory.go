package vectorstore

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPGVector = "pgvector"
)

type Config struct {
	Backend string
	// MemoryCapacity bounds the memory backend; <= 0 is unbounded.
	MemoryCapacity int
}

// Clients holds the connections a backend may need. Unused ones may be nil.
type Clients struct {
	Redis    *redis.Client
	Postgres *gorm.DB
}

func New(cfg Config, schema Schema, clients Clients) (Store, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendRedis:
		if clients.Redis == nil {
			return nil, fmt.Errorf("vectorstore: redis backend selected without a redis client")
		}
		return NewRedis(clients.Redis, schema), nil
	case BackendPGVector:
		if clients.Postgres == nil {
			return nil, fmt.Errorf("vectorstore: pgvector backend selected without a database")
		}
		return NewPGVector(clients.Postgres, schema), nil
	case BackendMemory, "":
		return NewMemory(schema, cfg.MemoryCapacity), nil
	default:
		return nil, fmt.Errorf("vectorstore: unknown backend %q", cfg.Backend)
	}
}
