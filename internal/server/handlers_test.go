package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"docquery/internal/answer"
	"docquery/internal/config"
	"docquery/internal/embedding"
	"docquery/internal/index"
	"docquery/internal/ingest"
	"docquery/internal/llm"
	"docquery/internal/models"
	"docquery/internal/storage"
	"docquery/internal/vector"
)

// testExtractor returns the upload bytes as text so tests do not need real
// PDF payloads.
type testExtractor struct{}

func (testExtractor) Extract(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func newTestServer(t *testing.T) (*Server, *llm.MockClient) {
	t.Helper()
	client := &llm.MockClient{Response: "A grounded answer."}
	return newTestServerWith(t, client), client
}

func newTestServerWith(t *testing.T, client llm.Client) *Server {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.UploadDir = t.TempDir()
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "catalog.db")
	cfg.Storage.MaxUploadBytes = 4096
	cfg.RAG.ChunkSize = 100
	cfg.RAG.ChunkOverlap = 10

	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	embedder := embedding.NewMockEmbedder(8)
	vec, err := vector.NewMemoryIndex(8)
	if err != nil {
		t.Fatal(err)
	}
	idx := index.New(store, embedder, vec)

	ingestor, err := ingest.NewIngestor(idx, testExtractor{},
		ingest.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap),
		cfg.Storage.UploadDir, cfg.Storage.MaxUploadBytes, nil)
	if err != nil {
		t.Fatal(err)
	}

	answers := answer.NewService(idx, client, &cfg.RAG, nil)

	return NewServer(ingestor, answers, idx, cfg, zap.NewNop())
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func doUpload(t *testing.T, router http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rec.Body.String())
	}
}

func TestHandleUpload(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doUpload(t, router, "report.pdf", []byte(strings.Repeat("document text ", 20)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]interface{}
	decodeJSON(t, rec, &resp)
	if resp["filename"] != "report.pdf" || resp["message"] == "" {
		t.Errorf("response = %v", resp)
	}
	if resp["total_documents"].(float64) != 1 {
		t.Errorf("total_documents = %v", resp["total_documents"])
	}
	if resp["chunk_count"].(float64) < 1 {
		t.Errorf("chunk_count = %v", resp["chunk_count"])
	}
}

type failingStats struct{}

func (failingStats) Stats(ctx context.Context) (*models.Stats, error) {
	return nil, errors.New("catalog unavailable")
}

func TestHandleUpload_StatsFailureSurfaces(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.index = failingStats{}
	router := srv.Router()

	rec := doUpload(t, router, "report.pdf", []byte("document text"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 when stats cannot be read", rec.Code)
	}
	var resp map[string]string
	decodeJSON(t, rec, &resp)
	if resp["category"] != "internal" {
		t.Errorf("category = %q, want internal", resp["category"])
	}
}

func TestHandleUpload_Rejections(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	tests := []struct {
		name     string
		filename string
		content  []byte
	}{
		{"wrong type", "notes.txt", []byte("hello")},
		{"oversized", "big.pdf", make([]byte, 5000)},
		{"empty", "empty.pdf", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doUpload(t, router, tt.filename, tt.content)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			var resp map[string]string
			decodeJSON(t, rec, &resp)
			if resp["category"] != "validation" {
				t.Errorf("category = %q", resp["category"])
			}
		})
	}
}

func TestHandleUpload_MissingFileField(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleQuery(t *testing.T) {
	srv, client := newTestServer(t)
	router := srv.Router()

	doUpload(t, router, "facts.pdf", []byte("the capital of france is paris"))

	body, _ := json.Marshal(map[string]interface{}{"question": "the capital of france is paris"})
	req := httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Answer     string `json:"answer"`
		Confidence string `json:"confidence"`
		Sources    []struct {
			Filename string `json:"filename"`
		} `json:"sources"`
	}
	decodeJSON(t, rec, &resp)
	if resp.Answer != "A grounded answer." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Sources) == 0 || resp.Sources[0].Filename != "facts.pdf" {
		t.Errorf("sources = %+v", resp.Sources)
	}
	if len(client.Calls) != 1 {
		t.Errorf("LLM calls = %d", len(client.Calls))
	}
}

func TestHandleQuery_EmptyIndex(t *testing.T) {
	srv, client := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"question": "anything at all?"})
	req := httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Answer     string `json:"answer"`
		Confidence string `json:"confidence"`
	}
	decodeJSON(t, rec, &resp)
	if resp.Answer != answer.InsufficientContextAnswer {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.Confidence != "low" {
		t.Errorf("confidence = %q", resp.Confidence)
	}
	if len(client.Calls) != 0 {
		t.Error("LLM called for empty index")
	}
}

func TestHandleQuery_Validation(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	for _, body := range []string{`{}`, `{"question":"  "}`, `{"question":"q","top_k":-1}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d", body, rec.Code)
		}
	}
}

func TestHandleQuery_UpstreamFailure(t *testing.T) {
	srv, client := newTestServer(t)
	router := srv.Router()

	doUpload(t, router, "doc.pdf", []byte("some indexed text"))
	client.Err = fmt.Errorf("completion failed: %w", models.ErrUpstream)

	body, _ := json.Marshal(map[string]string{"question": "some indexed text"})
	req := httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	decodeJSON(t, rec, &resp)
	if resp["category"] != "upstream" {
		t.Errorf("category = %q", resp["category"])
	}
}

func TestHandleDeleteDocument(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	doUpload(t, router, "gone.pdf", []byte("temporary document"))

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/gone.pdf", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]interface{}
	decodeJSON(t, rec, &resp)
	if resp["filename"] != "gone.pdf" || resp["chunks_removed"].(float64) < 1 {
		t.Errorf("response = %v", resp)
	}

	// Deleting again is a 404 with the not_found category.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/documents/gone.pdf", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}
	var errResp map[string]string
	decodeJSON(t, rec, &errResp)
	if errResp["category"] != "not_found" {
		t.Errorf("category = %q", errResp["category"])
	}
}

func TestHandleStats(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	doUpload(t, router, "b.pdf", []byte("contents of b"))
	doUpload(t, router, "a.pdf", []byte("contents of a"))

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		TotalDocuments int      `json:"total_documents"`
		TotalChunks    int      `json:"total_chunks"`
		UniqueFiles    []string `json:"unique_files"`
		StorageBytes   int64    `json:"storage_bytes"`
	}
	decodeJSON(t, rec, &resp)
	if resp.TotalDocuments != 2 {
		t.Errorf("total_documents = %d", resp.TotalDocuments)
	}
	if len(resp.UniqueFiles) != 2 || resp.UniqueFiles[0] != "a.pdf" {
		t.Errorf("unique_files = %v", resp.UniqueFiles)
	}
	if resp.StorageBytes <= 0 {
		t.Errorf("storage_bytes = %d", resp.StorageBytes)
	}
}

func TestHandleStats_MonitorToken(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.config.Server.MonitorToken = "secret"
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without token = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status with token = %d", rec.Code)
	}
}

func TestHandleReset(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	doUpload(t, router, "doc.pdf", []byte("some document"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reset", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	var resp struct {
		TotalDocuments int `json:"total_documents"`
	}
	decodeJSON(t, rec, &resp)
	if resp.TotalDocuments != 0 {
		t.Errorf("total_documents after reset = %d", resp.TotalDocuments)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	decodeJSON(t, rec, &resp)
	if resp["status"] != "ok" || resp["app"] == "" {
		t.Errorf("response = %v", resp)
	}
}

// blockingClient parks inside Complete until released, to hold an admission
// slot open.
type blockingClient struct {
	entered chan struct{}
	release chan struct{}
}

func (c *blockingClient) Complete(ctx context.Context, system, user string) (string, error) {
	close(c.entered)
	<-c.release
	return "late answer", nil
}

func (c *blockingClient) Close() error { return nil }

func TestHandleHealth_AvailableWhileAPISaturated(t *testing.T) {
	client := &blockingClient{entered: make(chan struct{}), release: make(chan struct{})}
	srv := newTestServerWith(t, client)
	srv.config.Server.Concurrency = 1
	router := srv.Router()

	if rec := doUpload(t, router, "facts.pdf", []byte("important facts")); rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d", rec.Code)
	}

	// Occupy the single admission slot with a query parked in the LLM call.
	done := make(chan struct{})
	go func() {
		defer close(done)
		body, _ := json.Marshal(map[string]string{"question": "important facts"})
		req := httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewReader(body))
		router.ServeHTTP(httptest.NewRecorder(), req)
	}()
	<-client.entered

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status while saturated = %d, want 200", rec.Code)
	}

	close(client.release)
	<-done
}
