package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docquery/internal/extract"
	"docquery/internal/models"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(path string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeIndex struct {
	added   map[string]int
	addErr  error
	deleted []string
	reset   bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{added: make(map[string]int)}
}

func (f *fakeIndex) Add(ctx context.Context, filename string, sizeBytes int64, chunks []*models.Chunk) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added[filename] = len(chunks)
	return nil
}

func (f *fakeIndex) Delete(ctx context.Context, filename string) (int, error) {
	if _, ok := f.added[filename]; !ok {
		return 0, models.ErrNotFound
	}
	n := f.added[filename]
	delete(f.added, filename)
	f.deleted = append(f.deleted, filename)
	return n, nil
}

func (f *fakeIndex) Reset(ctx context.Context) error {
	f.reset = true
	f.added = make(map[string]int)
	return nil
}

func newTestIngestor(t *testing.T, idx DocumentIndex, ext TextExtractor) *Ingestor {
	t.Helper()
	g, err := NewIngestor(idx, ext, NewChunker(500, 50), t.TempDir(), 1024, nil)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestIngestor_Upload(t *testing.T) {
	idx := newFakeIndex()
	g := newTestIngestor(t, idx, &fakeExtractor{text: strings.Repeat("a", 600)})

	doc, err := g.Upload(context.Background(), "report.pdf", []byte("%PDF-fake"))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Filename != "report.pdf" {
		t.Errorf("Filename = %q", doc.Filename)
	}
	if doc.ChunkCount != 2 {
		t.Errorf("ChunkCount = %d, want 2", doc.ChunkCount)
	}
	if idx.added["report.pdf"] != 2 {
		t.Errorf("index received %d chunks", idx.added["report.pdf"])
	}
	if _, err := os.Stat(filepath.Join(g.UploadDir(), "report.pdf")); err != nil {
		t.Errorf("uploaded file missing: %v", err)
	}
}

func TestIngestor_UploadValidation(t *testing.T) {
	g := newTestIngestor(t, newFakeIndex(), &fakeExtractor{text: "text"})
	ctx := context.Background()

	tests := []struct {
		name     string
		filename string
		content  []byte
	}{
		{"empty filename", "", []byte("x")},
		{"wrong extension", "notes.txt", []byte("x")},
		{"path traversal", "../evil.pdf", []byte("x")},
		{"empty file", "empty.pdf", nil},
		{"oversized", "big.pdf", make([]byte, 2048)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Upload(ctx, tt.filename, tt.content)
			if !errors.Is(err, models.ErrValidation) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func TestIngestor_UploadNoText(t *testing.T) {
	g := newTestIngestor(t, newFakeIndex(), &fakeExtractor{err: extract.ErrNoText})

	_, err := g.Upload(context.Background(), "scan.pdf", []byte("%PDF-fake"))
	if !errors.Is(err, models.ErrUnprocessable) {
		t.Fatalf("err = %v, want unprocessable", err)
	}
	// The rejected file must not linger in the upload directory.
	if _, statErr := os.Stat(filepath.Join(g.UploadDir(), "scan.pdf")); !os.IsNotExist(statErr) {
		t.Error("rejected upload was left on disk")
	}
}

func TestIngestor_UploadIndexFailureRemovesFile(t *testing.T) {
	idx := newFakeIndex()
	idx.addErr = models.ErrUpstream
	g := newTestIngestor(t, idx, &fakeExtractor{text: "some text"})

	_, err := g.Upload(context.Background(), "doc.pdf", []byte("%PDF-fake"))
	if !errors.Is(err, models.ErrUpstream) {
		t.Fatalf("err = %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(g.UploadDir(), "doc.pdf")); !os.IsNotExist(statErr) {
		t.Error("failed upload was left on disk")
	}
}

func TestIngestor_UploadOverwrites(t *testing.T) {
	idx := newFakeIndex()
	g := newTestIngestor(t, idx, &fakeExtractor{text: "replacement text"})
	ctx := context.Background()

	if _, err := g.Upload(ctx, "doc.pdf", []byte("first")); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Upload(ctx, "doc.pdf", []byte("second version")); err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(filepath.Join(g.UploadDir(), "doc.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "second version" {
		t.Errorf("file content = %q", content)
	}
}

func TestIngestor_FailedOverwriteKeepsPreviousFile(t *testing.T) {
	idx := newFakeIndex()
	ext := &fakeExtractor{text: "original text"}
	g := newTestIngestor(t, idx, ext)
	ctx := context.Background()

	if _, err := g.Upload(ctx, "doc.pdf", []byte("original bytes")); err != nil {
		t.Fatal(err)
	}

	// A re-upload whose extraction fails must leave the previous file and
	// its chunks in place, so every cited document still exists on disk.
	ext.err = extract.ErrNoText
	if _, err := g.Upload(ctx, "doc.pdf", []byte("unreadable bytes")); !errors.Is(err, models.ErrUnprocessable) {
		t.Fatalf("err = %v, want unprocessable", err)
	}

	content, err := os.ReadFile(filepath.Join(g.UploadDir(), "doc.pdf"))
	if err != nil {
		t.Fatalf("previous file missing after failed overwrite: %v", err)
	}
	if string(content) != "original bytes" {
		t.Errorf("file content = %q, want original bytes", content)
	}
	if idx.added["doc.pdf"] != 1 {
		t.Errorf("indexed chunks = %d, want the original 1", idx.added["doc.pdf"])
	}

	entries, err := os.ReadDir(g.UploadDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("upload dir entries = %d, want 1 (no staging leftovers)", len(entries))
	}
}

func TestIngestor_IngestFile(t *testing.T) {
	idx := newFakeIndex()
	g := newTestIngestor(t, idx, &fakeExtractor{text: "dropped file text"})

	path := filepath.Join(g.UploadDir(), "dropped.pdf")
	if err := os.WriteFile(path, []byte("%PDF-fake"), 0644); err != nil {
		t.Fatal(err)
	}

	doc, err := g.IngestFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Filename != "dropped.pdf" {
		t.Errorf("Filename = %q", doc.Filename)
	}
	if idx.added["dropped.pdf"] == 0 {
		t.Error("dropped file was not indexed")
	}
}

func TestIngestor_Delete(t *testing.T) {
	idx := newFakeIndex()
	g := newTestIngestor(t, idx, &fakeExtractor{text: "text"})
	ctx := context.Background()

	if _, err := g.Upload(ctx, "doc.pdf", []byte("content")); err != nil {
		t.Fatal(err)
	}

	n, err := g.Delete(ctx, "doc.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("deleted chunks = %d", n)
	}
	if _, statErr := os.Stat(filepath.Join(g.UploadDir(), "doc.pdf")); !os.IsNotExist(statErr) {
		t.Error("file not removed on delete")
	}

	if _, err := g.Delete(ctx, "doc.pdf"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete err = %v, want not found", err)
	}
}

func TestIngestor_Reset(t *testing.T) {
	idx := newFakeIndex()
	g := newTestIngestor(t, idx, &fakeExtractor{text: "text"})
	ctx := context.Background()

	if _, err := g.Upload(ctx, "a.pdf", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Upload(ctx, "b.pdf", []byte("two")); err != nil {
		t.Fatal(err)
	}

	if err := g.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if !idx.reset {
		t.Error("index not reset")
	}
	entries, err := os.ReadDir(g.UploadDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("upload dir not emptied, %d entries remain", len(entries))
	}
}
