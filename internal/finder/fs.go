package finder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/seek/internal/models"
	"go.uber.org/zap"
)

const (
	defaultBatchSize     = 64
	defaultFlushInterval = 250 * time.Millisecond
)

// ErrNotDirectory is returned when the search directory is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// FSExecutor searches the local file system by walking the directory tree.
type FSExecutor struct {
	batchSize     int
	flushInterval time.Duration
	includeHidden bool
	logger        *zap.Logger // optional; when set, logs debug events
}

// FSExecutorOption configures an FSExecutor.
type FSExecutorOption func(*FSExecutor)

// WithLogger sets a logger for debug output (skipped subtrees, batches, completion).
func WithLogger(l *zap.Logger) FSExecutorOption {
	return func(x *FSExecutor) { x.logger = l }
}

// WithBatchSize sets how many matches are collected before a partial result is emitted.
func WithBatchSize(n int) FSExecutorOption {
	return func(x *FSExecutor) {
		if n > 0 {
			x.batchSize = n
		}
	}
}

// WithFlushInterval emits a non-empty partial batch when this much time passed since the last one.
func WithFlushInterval(d time.Duration) FSExecutorOption {
	return func(x *FSExecutor) {
		if d > 0 {
			x.flushInterval = d
		}
	}
}

// WithIncludeHidden makes the walk descend into and match dot-files.
func WithIncludeHidden(include bool) FSExecutorOption {
	return func(x *FSExecutor) { x.includeHidden = include }
}

// NewFSExecutor creates a file-system executor.
func NewFSExecutor(opts ...FSExecutorOption) *FSExecutor {
	x := &FSExecutor{
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// FindFiles validates the directory and query and starts the walk in a new goroutine.
func (x *FSExecutor) FindFiles(ctx context.Context, directory string, query models.Query) (*Execution, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	m, err := newMatcher(query)
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(directory)
	if err != nil {
		return nil, fmt.Errorf("invalid search directory: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat search directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}

	exec, em := NewExecution(ctx)
	go x.run(em, root, m)
	return exec, nil
}

func (x *FSExecutor) run(em *Emitter, root string, m *matcher) {
	defer em.End()
	if !em.Start() {
		return
	}
	ctx := em.Context()
	if x.logger != nil {
		x.logger.Debug("search started", zap.String("directory", root), zap.Strings("terms", m.terms))
	}

	batch := make([]*models.FileSystemObject, 0, x.batchSize)
	lastFlush := time.Now()
	total := 0
	flush := func() bool {
		if len(batch) == 0 {
			return true
		}
		out := batch
		batch = make([]*models.FileSystemObject, 0, x.batchSize)
		lastFlush = time.Now()
		total += len(out)
		return em.Partial(out)
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			// Unreadable subtrees are skipped; the rest of the walk continues.
			if x.logger != nil {
				x.logger.Debug("search skipped path", zap.String("path", path), zap.Error(err))
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		name := d.Name()
		if !x.includeHidden && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if m.match(name) {
			obj, infoErr := x.object(path, d)
			if infoErr != nil {
				if x.logger != nil {
					x.logger.Debug("search stat failed", zap.String("path", path), zap.Error(infoErr))
				}
				return nil
			}
			batch = append(batch, obj)
		}
		if len(batch) >= x.batchSize || (len(batch) > 0 && time.Since(lastFlush) >= x.flushInterval) {
			if !flush() {
				return context.Canceled
			}
		}
		return nil
	})

	if ctx.Err() != nil {
		// Matches collected before the cancel are still delivered; an abandoned
		// execution makes the send a no-op.
		flush()
		if x.logger != nil {
			x.logger.Debug("search cancelled", zap.String("directory", root), zap.Int("emitted", total))
		}
		return
	}
	if !flush() {
		return
	}
	if err != nil {
		em.Error(fmt.Errorf("search failed: %w", err))
		return
	}
	if x.logger != nil {
		x.logger.Debug("search finished", zap.String("directory", root), zap.Int("found", total))
	}
}

// object builds the result entry for path, resolving symlink targets when possible.
func (x *FSExecutor) object(path string, d fs.DirEntry) (*models.FileSystemObject, error) {
	info, err := d.Info()
	if err != nil {
		return nil, err
	}
	obj := models.NewFileSystemObject(path, info)
	if obj.Kind != models.KindSymlink {
		return obj, nil
	}
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return obj, nil
	}
	if targetInfo, err := os.Stat(target); err == nil {
		obj.LinkTarget = models.NewFileSystemObject(target, targetInfo)
	}
	return obj, nil
}
