// Package ingest handles PDF uploads: validation, text extraction, chunking,
// and handoff to the index.
package ingest

import (
	"docquery/internal/models"
)

// Chunker splits extracted text into overlapping rune windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in runes).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Chunk splits text into Chunks with overlapping windows. Every rune of the
// input lands in at least one chunk and indices are contiguous from 0.
func (c *Chunker) Chunk(filename, text string) []*models.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	chunks := make([]*models.Chunk, 0)
	chunkIndex := 0
	for i := 0; i < len(runes); i += step {
		end := i + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, &models.Chunk{
			Filename: filename,
			Index:    chunkIndex,
			Content:  string(runes[i:end]),
		})
		chunkIndex++
		if end >= len(runes) {
			break
		}
	}
	return chunks
}
