package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/config"
)

// NewFromConfig acts as a factory for the configured memory backend. It
// returns a nil store when long-term memory is disabled.
func NewFromConfig(ctx context.Context, cfg config.MemoryConfig, pool DBPool, logger *zap.Logger) (schemas.MemoryStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Type {
	case "", config.MemoryNone:
		return nil, nil
	case config.MemoryInMemory:
		return NewInMemory(logger), nil
	case config.MemoryPostgres:
		if pool == nil {
			return nil, fmt.Errorf("PostgreSQL memory store requires a valid database connection pool")
		}
		s, err := New(ctx, pool, logger)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown memory store type specified: %s", cfg.Type)
	}
}
