// Package watcher watches the directories of finished searches with fsnotify and reports,
// after a debounce, which sessions hold results that no longer match the file system.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var errStopped = errors.New("watcher stopped")

const (
	defaultDebounce       = 400 * time.Millisecond
	defaultMaxDirectories = 4096
)

// Watcher watches the directories tracked for sessions and calls onStale for every session
// whose directory tree gained, lost or renamed an entry.
type Watcher struct {
	onStale     func(sessionID string)
	debounce    time.Duration
	maxDirs     int
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	sessions    map[string]string              // session -> root
	roots       map[string]map[string]struct{} // root -> sessions
	rootPaths   map[string][]string            // root -> watched dirs
	watchCount  map[string]int                 // watched dir -> number of roots using it
	debounceMap map[string]*time.Timer         // session -> pending notification
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long a session's events are coalesced before onStale is called.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithMaxDirectories caps the number of directories watched per tracked root.
func WithMaxDirectories(n int) WatcherOption {
	return func(w *Watcher) {
		if n > 0 {
			w.maxDirs = n
		}
	}
}

// NewWatcher creates a watcher. onStale is called from a timer goroutine.
func NewWatcher(onStale func(sessionID string), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		onStale:     onStale,
		debounce:    defaultDebounce,
		maxDirs:     defaultMaxDirectories,
		sessions:    make(map[string]string),
		roots:       make(map[string]map[string]struct{}),
		rootPaths:   make(map[string][]string),
		watchCount:  make(map[string]int),
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts the watcher and adds watches for roots tracked before it started.
// It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	select {
	case <-w.done:
		w.mu.Unlock()
		return errStopped
	default:
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	for root := range w.roots {
		w.addRootLocked(root)
	}
	w.logger.Debug("watcher started", zap.Int("roots", len(w.roots)))
	w.mu.Unlock()
	go w.run(ctx, watcher.Events, watcher.Errors)
	return nil
}

func (w *Watcher) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-errs:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

// Track watches directory on behalf of sessionID, replacing what the session tracked before.
func (w *Watcher) Track(sessionID, directory string) {
	root, err := filepath.Abs(directory)
	if err != nil {
		w.logger.Debug("watcher cannot resolve directory", zap.String("directory", directory), zap.Error(err))
		return
	}
	root = filepath.Clean(root)

	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.sessions[sessionID]; ok {
		if prev == root {
			return
		}
		w.untrackLocked(sessionID)
	}
	w.sessions[sessionID] = root
	if _, ok := w.roots[root]; !ok {
		w.roots[root] = make(map[string]struct{})
		if w.watcher != nil {
			w.addRootLocked(root)
		}
	}
	w.roots[root][sessionID] = struct{}{}
	w.logger.Debug("watcher tracking session", zap.String("session", sessionID), zap.String("root", root))
}

// Untrack stops watching for sessionID. Pending notifications for it are dropped.
func (w *Watcher) Untrack(sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.untrackLocked(sessionID)
}

func (w *Watcher) untrackLocked(sessionID string) {
	if t, ok := w.debounceMap[sessionID]; ok {
		t.Stop()
		delete(w.debounceMap, sessionID)
	}
	root, ok := w.sessions[sessionID]
	if !ok {
		return
	}
	delete(w.sessions, sessionID)
	delete(w.roots[root], sessionID)
	if len(w.roots[root]) > 0 {
		return
	}
	delete(w.roots, root)
	w.removeRootLocked(root)
}

// Roots returns the tracked root directories, sorted.
func (w *Watcher) Roots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	roots := make([]string, 0, len(w.roots))
	for r := range w.roots {
		roots = append(roots, r)
	}
	sort.Strings(roots)
	return roots
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	path := filepath.Clean(ev.Name)
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.handleNewDirectory(path)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for root, sessions := range w.roots {
		if root != path && !inDir(root, path) {
			continue
		}
		for id := range sessions {
			w.debounceLocked(id)
		}
	}
}

// handleNewDirectory watches a directory created under a tracked root.
func (w *Watcher) handleNewDirectory(dirPath string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return
	}
	for root := range w.roots {
		if !inDir(root, dirPath) {
			continue
		}
		w.rootPaths[root] = append(w.rootPaths[root], w.walkLocked(dirPath, w.maxDirs-len(w.rootPaths[root]))...)
	}
}

func (w *Watcher) debounceLocked(sessionID string) {
	if t, ok := w.debounceMap[sessionID]; ok {
		t.Stop()
	}
	w.debounceMap[sessionID] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if _, tracked := w.sessions[sessionID]; !tracked {
			w.mu.Unlock()
			return
		}
		delete(w.debounceMap, sessionID)
		onStale := w.onStale
		w.mu.Unlock()
		w.logger.Debug("watcher marking session stale", zap.String("session", sessionID))
		if onStale != nil {
			onStale(sessionID)
		}
	})
}

func (w *Watcher) addRootLocked(root string) {
	if _, err := os.Stat(root); err != nil {
		w.logger.Debug("watcher cannot watch root", zap.String("root", root), zap.Error(err))
		return
	}
	w.rootPaths[root] = w.walkLocked(root, w.maxDirs)
}

// walkLocked adds watches for dir and its subdirectories, at most limit of them.
func (w *Watcher) walkLocked(dir string, limit int) []string {
	var paths []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if len(paths) >= limit {
			w.logger.Debug("watcher directory limit reached", zap.String("root", dir), zap.Int("limit", w.maxDirs))
			return fs.SkipAll
		}
		if w.watchCount[path] == 0 {
			if err := w.watcher.Add(path); err != nil {
				w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
				return nil
			}
		}
		w.watchCount[path]++
		paths = append(paths, path)
		return nil
	})
	return paths
}

func (w *Watcher) removeRootLocked(root string) {
	for _, p := range w.rootPaths[root] {
		w.watchCount[p]--
		if w.watchCount[p] > 0 {
			continue
		}
		delete(w.watchCount, p)
		if w.watcher != nil {
			_ = w.watcher.Remove(p)
		}
	}
	delete(w.rootPaths, root)
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Stop stops the watcher and releases resources. A stopped watcher cannot be restarted.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		w.stopOnce.Do(func() { close(w.done) })
		return
	}
	for id, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, id)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.rootPaths = make(map[string][]string)
	w.watchCount = make(map[string]int)
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
