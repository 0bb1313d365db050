// Package index coordinates the document catalog, the embedder, and the
// vector index so the three never drift apart.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"docquery/internal/embedding"
	"docquery/internal/models"
	"docquery/internal/storage"
	"docquery/internal/vector"
)

// ErrNotFound is returned when an operation names a document that is not
// indexed.
var ErrNotFound = storage.ErrNotFound

// Index keeps chunk text in the catalog and chunk embeddings in the vector
// index, keyed by the same chunk identity.
type Index struct {
	store    storage.Store
	embedder embedding.Embedder
	vectors  vector.Index
	logger   *zap.Logger // optional; when set, logs debug events
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets a logger for debug output (document indexed, deleted, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(idx *Index) { idx.logger = l }
}

// New creates an index over the given store, embedder, and vector backend.
func New(store storage.Store, embedder embedding.Embedder, vectors vector.Index, opts ...Option) *Index {
	idx := &Index{
		store:    store,
		embedder: embedder,
		vectors:  vectors,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Add indexes a document's chunks, replacing any previous version of the
// same filename. The operation is all or nothing: embeddings are generated
// first, catalog rows are staged in a transaction, and the transaction only
// commits after the vector writes succeed.
func (idx *Index) Add(ctx context.Context, filename string, sizeBytes int64, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("document %s has no chunks", filename)
	}

	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
		ids[i] = ch.ChunkID()
	}
	embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	// An earlier version of the document may have more chunks than the new
	// one; those vectors must go away or they would keep matching queries.
	staleCount := 0
	if prev, err := idx.store.GetDocument(ctx, filename); err == nil {
		staleCount = prev.ChunkCount
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to look up existing document: %w", err)
	}

	doc := &models.Document{Filename: filename, SizeBytes: sizeBytes}
	tx, err := idx.store.ReplaceDocument(ctx, doc, chunks)
	if err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	if err := idx.vectors.Upsert(ctx, ids, embeddings); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to index vectors: %w", err)
	}
	if staleCount > len(chunks) {
		stale := make([]string, 0, staleCount-len(chunks))
		for i := len(chunks); i < staleCount; i++ {
			stale = append(stale, models.ChunkID(filename, i))
		}
		if err := idx.vectors.Remove(ctx, stale); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to remove stale vectors: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit document: %w", err)
	}

	if idx.logger != nil {
		idx.logger.Debug("document indexed",
			zap.String("filename", filename),
			zap.Int("chunks", len(chunks)))
	}
	return nil
}

// Query embeds the question and returns the k most similar chunks with their
// text. Results are ordered by score descending, ties broken by chunk index
// then filename. An empty index yields an empty slice.
func (idx *Index) Query(ctx context.Context, question string, k int) ([]*models.Retrieved, error) {
	queryVec, err := idx.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	hits, err := idx.vectors.Search(ctx, queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]*models.Retrieved, 0, len(hits))
	for _, hit := range hits {
		filename, chunkIndex, err := models.ParseChunkID(hit.ID)
		if err != nil {
			return nil, fmt.Errorf("malformed chunk id %q: %w", hit.ID, err)
		}
		chunk, err := idx.store.GetChunk(ctx, filename, chunkIndex)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Vector without a catalog row; skip rather than fail
				// the whole query.
				continue
			}
			return nil, fmt.Errorf("failed to load chunk: %w", err)
		}
		results = append(results, &models.Retrieved{Chunk: chunk, Score: hit.Score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Chunk.Index != results[j].Chunk.Index {
			return results[i].Chunk.Index < results[j].Chunk.Index
		}
		return results[i].Chunk.Filename < results[j].Chunk.Filename
	})
	return results, nil
}

// Delete removes a document from the catalog and its vectors from the index,
// returning the number of chunks removed. Returns ErrNotFound for unknown
// filenames.
func (idx *Index) Delete(ctx context.Context, filename string) (int, error) {
	count, err := idx.store.DeleteDocument(ctx, filename)
	if err != nil {
		return 0, err
	}

	ids := make([]string, count)
	for i := 0; i < count; i++ {
		ids[i] = models.ChunkID(filename, i)
	}
	if err := idx.vectors.Remove(ctx, ids); err != nil {
		return 0, fmt.Errorf("failed to remove vectors: %w", err)
	}

	if idx.logger != nil {
		idx.logger.Debug("document deleted",
			zap.String("filename", filename),
			zap.Int("chunks", count))
	}
	return count, nil
}

// Reset clears the catalog and the vector index.
func (idx *Index) Reset(ctx context.Context) error {
	if err := idx.store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset catalog: %w", err)
	}
	if err := idx.vectors.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset vectors: %w", err)
	}
	return nil
}

// Stats reports current document and chunk counts from the catalog.
func (idx *Index) Stats(ctx context.Context) (*models.Stats, error) {
	return idx.store.Stats(ctx)
}
