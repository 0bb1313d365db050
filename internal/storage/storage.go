// Package storage persists the document catalog and chunk contents.
package storage

import (
	"context"

	"docquery/internal/models"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = models.ErrNotFound

// ReplaceTx is an open transaction holding a pending document replacement.
// Callers commit once the matching vector writes have succeeded, or roll
// back to leave the catalog untouched.
type ReplaceTx interface {
	Commit() error
	Rollback() error
}

// Store is the catalog of uploaded documents and their chunks.
type Store interface {
	// ReplaceDocument stages a document and its chunks inside a
	// transaction, removing any previous version first. The returned
	// transaction must be committed or rolled back by the caller.
	ReplaceDocument(ctx context.Context, doc *models.Document, chunks []*models.Chunk) (ReplaceTx, error)

	// GetDocument returns a document by filename, or ErrNotFound.
	GetDocument(ctx context.Context, filename string) (*models.Document, error)

	// GetChunk returns one chunk by filename and index, or ErrNotFound.
	GetChunk(ctx context.Context, filename string, index int) (*models.Chunk, error)

	// DeleteDocument removes a document and its chunks, returning the
	// number of chunks removed. Returns ErrNotFound for unknown filenames.
	DeleteDocument(ctx context.Context, filename string) (int, error)

	// Stats returns document and chunk counts plus the sorted list of
	// indexed filenames.
	Stats(ctx context.Context) (*models.Stats, error)

	// Reset removes every document and chunk.
	Reset(ctx context.Context) error

	Close() error
}
