// Package vector provides vector storage and similarity search backends.
package vector

import "context"

// Index defines vector storage and similarity search. Upsert with an existing
// ID overwrites its vector, so re-adding a chunk identity never duplicates.
type Index interface {
	Upsert(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Remove(ctx context.Context, ids []string) error
	Reset(ctx context.Context) error
	Size(ctx context.Context) (int, error)
	Save(path string) error
	Load(path string) error
	Close() error
}

// Result is a single vector search hit. ID is the chunk identity
// "<filename>:<index>"; Score is cosine similarity in [0, 1] for
// unit-normalized vectors.
type Result struct {
	ID    string
	Score float64
}
