package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"docquery/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	// The DSN parameter applies to every pooled connection; a PRAGMA issued
	// through db.Exec would only reach the one connection that ran it.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		filename TEXT PRIMARY KEY,
		uploaded_at TIMESTAMP NOT NULL,
		size_bytes INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		filename TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		PRIMARY KEY (filename, chunk_index),
		FOREIGN KEY (filename) REFERENCES documents(filename) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// ReplaceDocument stages the document and its chunks in a transaction. Any
// existing rows for the same filename are deleted first, so re-uploading a
// document replaces it wholesale.
func (s *SQLiteStore) ReplaceDocument(ctx context.Context, doc *models.Document, chunks []*models.Chunk) (ReplaceTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	doc.ChunkCount = len(chunks)

	// Chunks are deleted explicitly rather than through the cascade so the
	// replacement does not depend on the foreign_keys pragma.
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE filename = ?`, doc.Filename); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE filename = ?`, doc.Filename); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (filename, uploaded_at, size_bytes) VALUES (?, ?, ?)`,
		doc.Filename, doc.UploadedAt, doc.SizeBytes,
	); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (filename, chunk_index, content) VALUES (?, ?, ?)`,
	)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx, chunk.Filename, chunk.Index, chunk.Content); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
	}
	return tx, nil
}

// GetDocument returns a document by filename.
func (s *SQLiteStore) GetDocument(ctx context.Context, filename string) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT d.filename, d.uploaded_at, d.size_bytes,
		        (SELECT COUNT(*) FROM chunks c WHERE c.filename = d.filename)
		 FROM documents d WHERE d.filename = ?`, filename,
	).Scan(&doc.Filename, &doc.UploadedAt, &doc.SizeBytes, &doc.ChunkCount)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetChunk returns one chunk by filename and index.
func (s *SQLiteStore) GetChunk(ctx context.Context, filename string, index int) (*models.Chunk, error) {
	var chunk models.Chunk
	err := s.db.QueryRowContext(ctx,
		`SELECT filename, chunk_index, content FROM chunks
		 WHERE filename = ? AND chunk_index = ?`, filename, index,
	).Scan(&chunk.Filename, &chunk.Index, &chunk.Content)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: chunk %s index %d", ErrNotFound, filename, index)
	}
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

// DeleteDocument removes a document and its chunks in a transaction and
// returns the number of chunks removed.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, filename string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE filename = ?`, filename,
	).Scan(&count); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE filename = ?`, filename); err != nil {
		return 0, err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE filename = ?`, filename)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	return count, tx.Commit()
}

// Stats returns document and chunk counts and the sorted filename list.
func (s *SQLiteStore) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{UniqueFiles: []string{}}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.TotalDocuments); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&stats.TotalChunks); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT filename FROM documents ORDER BY filename`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		stats.UniqueFiles = append(stats.UniqueFiles, name)
	}
	return stats, rows.Err()
}

// Reset removes every document and chunk.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
