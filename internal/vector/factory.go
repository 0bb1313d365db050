package vector

import (
	"context"
	"fmt"

	"docquery/internal/config"
)

// Backend represents the vector index backend to use.
type Backend string

const (
	// BackendMemory uses in-memory brute-force search with optional disk
	// snapshots. Good for small collections.
	BackendMemory Backend = "memory"
	// BackendRedis uses a RediSearch HNSW index. Requires a Redis server
	// with the search module loaded.
	BackendRedis Backend = "redis"
)

// NewIndex creates a vector index for the configured backend.
// Supported backends: "memory" (default), "redis".
func NewIndex(ctx context.Context, cfg config.VectorConfig, dimensions int) (Index, error) {
	switch Backend(cfg.Backend) {
	case BackendMemory, "":
		idx, err := NewMemoryIndex(dimensions)
		if err != nil {
			return nil, err
		}
		if err := idx.Load(cfg.SnapshotPath); err != nil {
			idx.Close()
			return nil, fmt.Errorf("load vector snapshot: %w", err)
		}
		return idx, nil
	case BackendRedis:
		return NewRedisIndex(ctx, RedisConfig{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPass,
			IndexName:  cfg.IndexName,
			Dimensions: dimensions,
		})
	default:
		return nil, fmt.Errorf("unknown vector backend: %s (supported: memory, redis)", cfg.Backend)
	}
}
