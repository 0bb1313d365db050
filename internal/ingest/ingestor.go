package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docquery/internal/extract"
	"docquery/internal/models"
)

// DocumentIndex is the part of the index the ingestor drives.
type DocumentIndex interface {
	Add(ctx context.Context, filename string, sizeBytes int64, chunks []*models.Chunk) error
	Delete(ctx context.Context, filename string) (int, error)
	Reset(ctx context.Context) error
}

// TextExtractor pulls plain text out of a stored file.
type TextExtractor interface {
	Extract(path string) (string, error)
}

// Ingestor validates uploads, persists them to the upload directory, and
// feeds their text through the chunker into the index.
type Ingestor struct {
	index     DocumentIndex
	extractor TextExtractor
	chunker   *Chunker
	uploadDir string
	maxBytes  int64
	logger    *zap.Logger
}

// NewIngestor creates an ingestor. The upload directory is created if it
// does not exist.
func NewIngestor(index DocumentIndex, extractor TextExtractor, chunker *Chunker, uploadDir string, maxBytes int64, logger *zap.Logger) (*Ingestor, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Ingestor{
		index:     index,
		extractor: extractor,
		chunker:   chunker,
		uploadDir: uploadDir,
		maxBytes:  maxBytes,
		logger:    logger,
	}, nil
}

// Upload validates and indexes a PDF. The bytes are staged in a temp file,
// extracted and indexed from there, and only renamed over the final name once
// indexing succeeded. A failed re-upload therefore leaves both the previous
// file and its chunks untouched, and the directory only holds indexed
// documents.
func (g *Ingestor) Upload(ctx context.Context, filename string, content []byte) (*models.Document, error) {
	filename, err := g.validate(filename, int64(len(content)))
	if err != nil {
		return nil, err
	}

	dest := filepath.Join(g.uploadDir, filename)
	tmp := filepath.Join(g.uploadDir, ".tmp-"+uuid.New().String())
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}

	doc, err := g.ingest(ctx, filename, tmp, int64(len(content)))
	if err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("failed to persist upload: %w", err)
	}
	return doc, nil
}

// IngestFile indexes a PDF that already sits in the upload directory, such
// as one dropped there directly. The file is left in place on failure.
func (g *Ingestor) IngestFile(ctx context.Context, path string) (*models.Document, error) {
	filename := filepath.Base(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if filename, err = g.validate(filename, info.Size()); err != nil {
		return nil, err
	}
	return g.ingest(ctx, filename, path, info.Size())
}

func (g *Ingestor) ingest(ctx context.Context, filename, path string, size int64) (*models.Document, error) {
	text, err := g.extractor.Extract(path)
	if err != nil {
		if errors.Is(err, extract.ErrNoText) {
			return nil, fmt.Errorf("%w: %s: %v", models.ErrUnprocessable, filename, err)
		}
		return nil, fmt.Errorf("%w: %s: failed to extract text: %v", models.ErrUnprocessable, filename, err)
	}

	chunks := g.chunker.Chunk(filename, text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s: no content to index", models.ErrUnprocessable, filename)
	}

	if err := g.index.Add(ctx, filename, size, chunks); err != nil {
		return nil, err
	}

	if g.logger != nil {
		g.logger.Info("document ingested",
			zap.String("filename", filename),
			zap.Int("chunks", len(chunks)),
			zap.Int64("size_bytes", size))
	}
	return &models.Document{Filename: filename, SizeBytes: size, ChunkCount: len(chunks)}, nil
}

// validate checks the filename and size, returning the cleaned filename.
func (g *Ingestor) validate(filename string, size int64) (string, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "", fmt.Errorf("%w: filename is required", models.ErrValidation)
	}
	if filepath.Base(filename) != filename || strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("%w: filename must not contain path separators", models.ErrValidation)
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return "", fmt.Errorf("%w: only PDF files are supported", models.ErrValidation)
	}
	if size == 0 {
		return "", fmt.Errorf("%w: file is empty", models.ErrValidation)
	}
	if size > g.maxBytes {
		return "", fmt.Errorf("%w: file exceeds maximum size of %d bytes", models.ErrValidation, g.maxBytes)
	}
	return filename, nil
}

// Delete removes a document from the index and its file from the upload
// directory. Returns the number of chunks removed.
func (g *Ingestor) Delete(ctx context.Context, filename string) (int, error) {
	count, err := g.index.Delete(ctx, filename)
	if err != nil {
		return 0, err
	}
	if err := os.Remove(filepath.Join(g.uploadDir, filename)); err != nil && !os.IsNotExist(err) {
		return count, fmt.Errorf("failed to remove file: %w", err)
	}
	if g.logger != nil {
		g.logger.Info("document deleted", zap.String("filename", filename), zap.Int("chunks", count))
	}
	return count, nil
}

// Reset clears the index and empties the upload directory.
func (g *Ingestor) Reset(ctx context.Context) error {
	if err := g.index.Reset(ctx); err != nil {
		return err
	}
	entries, err := os.ReadDir(g.uploadDir)
	if err != nil {
		return fmt.Errorf("failed to read upload directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(g.uploadDir, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove file: %w", err)
		}
	}
	if g.logger != nil {
		g.logger.Info("index reset")
	}
	return nil
}

// UploadDir returns the directory uploads are stored in.
func (g *Ingestor) UploadDir() string {
	return g.uploadDir
}
