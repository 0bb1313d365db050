package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu       sync.Mutex
	ingested []string
	removed  []string
}

func (r *recorder) onIngest(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingested = append(r.ingested, filepath.Base(path))
}

func (r *recorder) onRemove(filename string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, filename)
}

func (r *recorder) waitForIngest(t *testing.T, want string) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		for _, name := range r.ingested {
			if name == want {
				r.mu.Unlock()
				return true
			}
		}
		r.mu.Unlock()
		time.Sleep(20 * time.Millisecond)
	}
	return false
}

func startWatcher(t *testing.T, dir string, rec *recorder) *Watcher {
	t.Helper()
	w := NewWatcher(dir, rec.onIngest, rec.onRemove, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_IngestOnCreate(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	if err := os.WriteFile(filepath.Join(dir, "dropped.pdf"), []byte("%PDF"), 0644); err != nil {
		t.Fatal(err)
	}
	if !rec.waitForIngest(t, "dropped.pdf") {
		t.Error("dropped.pdf was not ingested")
	}
}

func TestWatcher_IgnoresTempAndOtherFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	if err := os.WriteFile(filepath.Join(dir, ".tmp-abc123"), []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("text"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "real.pdf"), []byte("%PDF"), 0644); err != nil {
		t.Fatal(err)
	}

	if !rec.waitForIngest(t, "real.pdf") {
		t.Fatal("real.pdf was not ingested")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, name := range rec.ingested {
		if name != "real.pdf" {
			t.Errorf("unexpected ingest of %q", name)
		}
	}
}

func TestWatcher_RemoveCallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0644); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	startWatcher(t, dir, rec)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		rec.mu.Lock()
		n := len(rec.removed)
		rec.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.removed) != 1 || rec.removed[0] != "doc.pdf" {
		t.Errorf("removed = %v", rec.removed)
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "existing.pdf"), []byte("%PDF"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := startWatcher(t, dir, rec)
	w.SyncExistingFiles()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.ingested) != 1 || rec.ingested[0] != "existing.pdf" {
		t.Errorf("ingested = %v", rec.ingested)
	}
}

func TestWatcher_StopDuringEventBurst(t *testing.T) {
	// Stopping while events are still arriving must not panic the event loop.
	for i := 0; i < 20; i++ {
		dir := t.TempDir()
		w := NewWatcher(dir, func(string) {}, func(string) {}, WithDebounce(time.Millisecond))
		if err := w.Start(context.Background()); err != nil {
			t.Fatal(err)
		}

		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; ; j++ {
				select {
				case <-stop:
					return
				default:
				}
				name := filepath.Join(dir, "burst"+strconv.Itoa(j)+".pdf")
				_ = os.WriteFile(name, []byte("%PDF"), 0644)
			}
		}()

		time.Sleep(2 * time.Millisecond)
		w.Stop()
		close(stop)
		wg.Wait()
	}
}

func TestWatcher_StopIdempotent(t *testing.T) {
	w := NewWatcher(t.TempDir(), nil, nil)
	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
	// Start after stop opens a fresh watcher.
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	w.Stop()
}

func TestWatcher_StartMissingDirCreatesIt(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	w := NewWatcher(dir, nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory not created: %v", err)
	}
}
