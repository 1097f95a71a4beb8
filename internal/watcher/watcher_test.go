package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const testDebounce = 50 * time.Millisecond

type staleRecorder struct {
	mu    sync.Mutex
	calls []string
	ch    chan string
}

func newStaleRecorder() *staleRecorder {
	return &staleRecorder{ch: make(chan string, 16)}
}

func (r *staleRecorder) onStale(id string) {
	r.mu.Lock()
	r.calls = append(r.calls, id)
	r.mu.Unlock()
	r.ch <- id
}

func (r *staleRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *staleRecorder) wait(t *testing.T) string {
	t.Helper()
	select {
	case id := <-r.ch:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stale notification")
	}
	return ""
}

func (r *staleRecorder) expectNone(t *testing.T) {
	t.Helper()
	select {
	case id := <-r.ch:
		t.Errorf("unexpected stale notification for %q", id)
	case <-time.After(10 * testDebounce):
	}
}

func startWatcher(t *testing.T, r *staleRecorder) *Watcher {
	t.Helper()
	w := NewWatcher(r.onStale, WithDebounce(testDebounce))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_CreateMarksSessionStale(t *testing.T) {
	dir := t.TempDir()
	r := newStaleRecorder()
	w := startWatcher(t, r)
	w.Track("s1", dir)

	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if id := r.wait(t); id != "s1" {
		t.Errorf("stale session = %q, want s1", id)
	}
}

func TestWatcher_RemoveInSubdirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(sub, "old.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	r := newStaleRecorder()
	w := startWatcher(t, r)
	w.Track("s1", dir)

	if err := os.Remove(file); err != nil {
		t.Fatal(err)
	}
	r.wait(t)
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	r := newStaleRecorder()
	w := startWatcher(t, r)
	w.Track("s1", dir)

	sub := filepath.Join(dir, "fresh")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	r.wait(t)

	if err := os.WriteFile(filepath.Join(sub, "inner.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	r.wait(t)
}

func TestWatcher_DebounceCoalescesEvents(t *testing.T) {
	dir := t.TempDir()
	r := newStaleRecorder()
	w := startWatcher(t, r)
	w.Track("s1", dir)

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	r.wait(t)
	time.Sleep(5 * testDebounce)
	if n := r.count(); n != 1 {
		t.Errorf("stale notifications = %d, want 1", n)
	}
}

func TestWatcher_WriteIgnored(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	r := newStaleRecorder()
	w := startWatcher(t, r)
	w.Track("s1", dir)

	if err := os.WriteFile(file, []byte("changed"), 0644); err != nil {
		t.Fatal(err)
	}
	r.expectNone(t)
}

func TestWatcher_Untrack(t *testing.T) {
	dir := t.TempDir()
	r := newStaleRecorder()
	w := startWatcher(t, r)
	w.Track("s1", dir)
	w.Track("s2", dir)
	w.Untrack("s1")

	if diff := cmp.Diff([]string{filepath.Clean(dir)}, w.Roots()); diff != "" {
		t.Errorf("Roots() mismatch (-want +got):\n%s", diff)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if id := r.wait(t); id != "s2" {
		t.Errorf("stale session = %q, want s2", id)
	}

	w.Untrack("s2")
	if len(w.Roots()) != 0 {
		t.Errorf("Roots() = %v, want none", w.Roots())
	}
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	r.expectNone(t)
}

func TestWatcher_TrackBeforeStart(t *testing.T) {
	dir := t.TempDir()
	r := newStaleRecorder()
	w := NewWatcher(r.onStale, WithDebounce(testDebounce))
	w.Track("s1", dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	r.wait(t)
}

func TestWatcher_RestartAfterStop(t *testing.T) {
	w := NewWatcher(nil)
	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
	if err := w.Start(ctx); err == nil {
		t.Error("Start() after Stop() error = nil, want error")
	}
}

func TestWatcher_StopBeforeStartIsFinal(t *testing.T) {
	w := NewWatcher(nil)
	w.Stop()
	if err := w.Start(context.Background()); err == nil {
		w.Stop()
		t.Error("Start() after Stop() error = nil, want error")
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir, path string
		want      bool
	}{
		{"/data", "/data/a.txt", true},
		{"/data", "/data/sub/a.txt", true},
		{"/data", "/data", false},
		{"/data", "/database/a.txt", false},
		{"/data", "/other", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}
