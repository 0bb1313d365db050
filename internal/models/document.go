// Package models defines core data structures for documents, chunks, queries, and answers.
package models

import "time"

// Document represents a stored PDF file. Filename is the unique key; a document
// is immutable once stored and only removed by delete or reset.
type Document struct {
	Filename   string    `json:"filename" db:"filename"`
	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
	SizeBytes  int64     `json:"size_bytes" db:"size_bytes"`
	ChunkCount int       `json:"chunk_count" db:"chunk_count"`
}

// Chunk is a contiguous span of a document's extracted text. Indices are
// contiguous per filename starting at 0. The embedding is owned by the vector
// index and never leaves it.
type Chunk struct {
	Filename string `json:"filename" db:"filename"`
	Index    int    `json:"chunk_index" db:"chunk_index"`
	Content  string `json:"content" db:"content"`
}

// ChunkID returns the composite identity used to key a chunk in the vector
// index. Identical chunk identities overwrite on re-add.
func (c *Chunk) ChunkID() string {
	return ChunkID(c.Filename, c.Index)
}

// Stats is a read-only aggregate over the current document and chunk population.
type Stats struct {
	TotalDocuments int      `json:"total_documents"`
	TotalChunks    int      `json:"total_chunks"`
	UniqueFiles    []string `json:"unique_files"`
	StorageBytes   int64    `json:"storage_bytes"`
}
