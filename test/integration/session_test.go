// Package integration provides end-to-end tests (requires real storage and a real file system).
package integration

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/seek/internal/cli"
	"github.com/hyperjump/seek/internal/finder"
	"github.com/hyperjump/seek/internal/session"
	"github.com/hyperjump/seek/internal/storage"
	"github.com/hyperjump/seek/internal/watcher"
)

const waitFor = 5 * time.Second

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		p := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func finished(t *testing.T, obs *cli.TerminalObserver) {
	t.Helper()
	select {
	case <-obs.Finished():
	case <-time.After(waitFor):
		t.Fatal("search did not finish")
	}
}

func TestIntegration_WatcherMarksSessionStale(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "tree")
	writeFiles(t, root, "docs/report.txt", "docs/old/report-2020.txt")

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	var manager *session.Manager
	stale := make(chan string, 4)
	w := watcher.NewWatcher(func(id string) {
		if err := manager.MarkStale(context.Background(), id); err == nil {
			stale <- id
		}
	}, watcher.WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	obs := cli.NewTerminalObserver(io.Discard, true)
	manager = session.NewManager(finder.NewFSExecutor(), store,
		session.WithObserverFactory(func(string) session.Observer { return obs }),
		session.WithSessionOptions(session.WithTracker(w)),
	)
	defer manager.Shutdown(context.Background())

	sess, _, err := manager.Start(ctx, session.Input{Terms: []string{"report"}, Directory: root})
	if err != nil {
		t.Fatal(err)
	}
	finished(t, obs)
	if roots := w.Roots(); len(roots) != 1 || roots[0] != root {
		t.Fatalf("watched roots = %v, want [%s]", roots, root)
	}

	writeFiles(t, root, "docs/old/report-2021.txt")
	select {
	case id := <-stale:
		if id != sess.ID() {
			t.Errorf("stale session = %s, want %s", id, sess.ID())
		}
	case <-time.After(waitFor):
		t.Fatal("session was not marked stale")
	}
	view, err := sess.View(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !view.Stale || view.Total != 2 {
		t.Errorf("view = stale %v total %d, want stale with the 2 original results", view.Stale, view.Total)
	}

	if _, err := manager.Close(ctx, sess.ID()); err != nil {
		t.Fatal(err)
	}
	if roots := w.Roots(); len(roots) != 0 {
		t.Errorf("roots after close = %v, want none", roots)
	}
}

func TestIntegration_SnapshotSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "tree")
	writeFiles(t, root, "photos/cat.jpg", "photos/cat-2.jpg", "notes.txt")
	dbPath := filepath.Join(dir, "db.sqlite")
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(dbPath, 0)
	if err != nil {
		t.Fatal(err)
	}
	obs := cli.NewTerminalObserver(io.Discard, true)
	manager := session.NewManager(finder.NewFSExecutor(), store,
		session.WithObserverFactory(func(string) session.Observer { return obs }),
		session.WithPersistSnapshots(true),
	)
	if _, _, err := manager.Start(ctx, session.Input{Terms: []string{"cat"}, Directory: root}); err != nil {
		t.Fatal(err)
	}
	finished(t, obs)
	manager.Shutdown(ctx)
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopen as a new process would, and remove the files: restore must not search again.
	if err := os.RemoveAll(filepath.Join(root, "photos")); err != nil {
		t.Fatal(err)
	}
	store, err = storage.NewSQLiteStorage(dbPath, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	snaps, err := store.ListSnapshots(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(snaps))
	}
	last, err := store.LastSearch(ctx)
	if err != nil || last != "cat" {
		t.Errorf("last search = %q, %v; want cat", last, err)
	}

	manager = session.NewManager(finder.NewFSExecutor(), store)
	defer manager.Shutdown(ctx)
	sess, err := manager.RestoreByID(ctx, snaps[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	view, err := sess.View(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if view.State != session.StateDone || !view.Restored || len(view.Results) != 2 {
		t.Fatalf("view = %+v", view)
	}
	if view.Results[0].Object.Name != "cat.jpg" {
		t.Errorf("top result = %s, want cat.jpg", view.Results[0].Object.Name)
	}
	out, err := manager.Close(ctx, sess.ID())
	if err != nil {
		t.Fatal(err)
	}
	if out.Code != session.ResultCancelled || out.Snapshot == nil || out.Snapshot.ID != snaps[0].ID {
		t.Errorf("outcome = %+v", out)
	}
}
