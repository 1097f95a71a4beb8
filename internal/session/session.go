// Package session implements search sessions: a query submitted to a finder.Executor, the
// matches accumulated while the search streams, and the ranked results shown when it ends.
//
// Each Session owns a single goroutine. Caller commands and executor events are handled on it
// one at a time, so session state needs no locks.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/seek/internal/finder"
	"github.com/hyperjump/seek/internal/models"
	"github.com/hyperjump/seek/internal/ranking"
	"github.com/hyperjump/seek/internal/storage"
)

// State is the lifecycle state of a session.
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateRunning              State = "running"
	StateRendering            State = "rendering"
	StateDone                 State = "done"
	StateEmpty                State = "empty"
	StateClosed               State = "closed"
)

// ResultCode tells the navigation layer how the session ended.
type ResultCode string

const (
	ResultConfirmed ResultCode = "confirmed"
	ResultCancelled ResultCode = "cancelled"
)

// Outcome is handed back to the navigation layer when the user leaves the session.
type Outcome struct {
	Code ResultCode `json:"code"`
	// Snapshot lets the caller reopen the session without searching again.
	Snapshot *models.Snapshot `json:"snapshot,omitempty"`
	// SelectedDirectory is set when the user picked a directory result.
	SelectedDirectory string `json:"selected_directory,omitempty"`
}

// Input is a search request.
type Input struct {
	Terms []string `json:"terms"`
	// Voice marks terms from speech recognition. Short voice terms are dropped rather than
	// confirmed, and voice terms are not saved as recent queries.
	Voice bool `json:"voice,omitempty"`
	// Directory to search; the session's root directory when empty.
	Directory string `json:"directory,omitempty"`
}

// View is a read-only copy of the session state.
type View struct {
	ID        string                 `json:"id"`
	State     State                  `json:"state"`
	Query     models.Query           `json:"query"`
	Directory string                 `json:"directory"`
	Total     int                    `json:"total"`
	Results   []*models.SearchResult `json:"results,omitempty"`
	// Stale is set when the directory changed after the search finished.
	Stale bool `json:"stale"`
	// Restored is set when the results came from a snapshot.
	Restored bool `json:"restored"`
}

// Tracker is told which directories hold finished results, so it can report changes to them.
type Tracker interface {
	Track(sessionID, directory string)
	Untrack(sessionID string)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver sets the observer notified of session events.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithRecentQueries sets the store executed free-text terms are saved to.
func WithRecentQueries(r storage.RecentQueries) Option {
	return func(s *Session) { s.recent = r }
}

// WithPreferences sets where the last free-text search is remembered.
func WithPreferences(p storage.Preferences) Option {
	return func(s *Session) { s.prefs = p }
}

// WithRanker sets the ranker used to render results.
func WithRanker(r *ranking.Ranker) Option {
	return func(s *Session) {
		if r != nil {
			s.ranker = r
		}
	}
}

// WithMinTermLength sets the shortest term that runs without confirmation.
func WithMinTermLength(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.minTermLength = n
		}
	}
}

// WithRootDirectory sets the directory searched when Input names none.
func WithRootDirectory(dir string) Option {
	return func(s *Session) {
		if dir != "" {
			s.rootDirectory = dir
		}
	}
}

// WithTracker sets the tracker told about finished directories.
func WithTracker(t Tracker) Option {
	return func(s *Session) { s.tracker = t }
}

type request struct {
	fn   func() error
	err  error
	done chan struct{}
}

type renderResult struct {
	gen     uint64
	results []*models.SearchResult
	err     error
}

type pendingSearch struct {
	query     models.Query
	directory string
	// prev is the state to return to when the user declines.
	prev State
}

// Session is a single search session.
type Session struct {
	id            string
	executor      finder.Executor
	ranker        *ranking.Ranker
	recent        storage.RecentQueries
	prefs         storage.Preferences
	observer      Observer
	tracker       Tracker
	logger        *zap.Logger
	minTermLength int
	rootDirectory string

	ctx       context.Context
	cancelCtx context.CancelFunc
	requests  chan *request
	renders   chan renderResult
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// Owned by the session goroutine.
	state        State
	query        models.Query
	directory    string
	pending      *pendingSearch
	exec         *finder.Execution
	accumulated  []*models.FileSystemObject
	results      []*models.SearchResult
	rendered     bool
	restored     *models.Snapshot
	stale        bool
	failed       bool
	renderCancel context.CancelFunc
	renderGen    uint64
}

// New creates a session and starts its goroutine. Call Dispose to stop it.
func New(id string, executor finder.Executor, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:            id,
		executor:      executor,
		ranker:        ranking.NewRanker(nil),
		observer:      NopObserver{},
		logger:        zap.NewNop(),
		minTermLength: models.DefaultMinTermLength,
		rootDirectory: "/",
		ctx:           ctx,
		cancelCtx:     cancel,
		requests:      make(chan *request),
		renders:       make(chan renderResult, 1),
		quit:          make(chan struct{}),
		stopped:       make(chan struct{}),
		state:         StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.loop()
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// do runs fn on the session goroutine and waits for it.
func (s *Session) do(ctx context.Context, fn func() error) error {
	req := &request{fn: fn, done: make(chan struct{})}
	select {
	case s.requests <- req:
	case <-s.stopped:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-req.done
	return req.err
}

// Start submits a search. Voice terms shorter than the minimum length are dropped. When a
// free-text term is too short the session waits for Confirm; otherwise the search runs now.
// On failure the user is notified and the visible state is left as it was.
func (s *Session) Start(ctx context.Context, in Input) (State, error) {
	var state State
	err := s.do(ctx, func() error {
		var err error
		state, err = s.start(ctx, in)
		return err
	})
	return state, err
}

// Confirm answers a pending confirmation. Proceeding runs the search over all terms;
// declining returns to the previous state without calling the executor.
func (s *Session) Confirm(ctx context.Context, proceed bool) (State, error) {
	var state State
	err := s.do(ctx, func() error {
		var err error
		state, err = s.confirm(ctx, proceed)
		return err
	})
	return state, err
}

// Cancel requests cancellation of the running search. It returns false when nothing is
// running or cancellation was already requested. Matches found so far are still rendered.
func (s *Session) Cancel(ctx context.Context) (bool, error) {
	var ok bool
	err := s.do(ctx, func() error {
		if s.exec == nil || s.exec.IsCanceled() {
			return nil
		}
		ok = s.exec.Cancel()
		if ok {
			s.logger.Debug("search cancellation requested", zap.String("session", s.id), zap.String("execution", s.exec.ID()))
		}
		return nil
	})
	return ok, err
}

// Restore replaces the session state with snap without running a search.
func (s *Session) Restore(ctx context.Context, snap *models.Snapshot) error {
	return s.do(ctx, func() error {
		return s.restore(snap)
	})
}

// Snapshot captures directory, query and results. Results not yet rendered are ranked first.
func (s *Session) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	var snap *models.Snapshot
	err := s.do(ctx, func() error {
		var err error
		snap, err = s.snapshot(ctx)
		return err
	})
	return snap, err
}

// View returns a copy of the session state.
func (s *Session) View(ctx context.Context) (View, error) {
	var v View
	err := s.do(ctx, func() error {
		v = View{
			ID:        s.id,
			State:     s.state,
			Query:     s.query,
			Directory: s.directory,
			Total:     len(s.accumulated),
			Stale:     s.stale,
			Restored:  s.restored != nil,
		}
		if s.rendered {
			v.Results = append([]*models.SearchResult(nil), s.results...)
		}
		return nil
	})
	return v, err
}

// Select picks the rendered result at index. Parent entries navigate to their parent,
// directories to themselves and symlinks to the directory they point to. Other results
// return ErrNotNavigable.
func (s *Session) Select(ctx context.Context, index int) (*Outcome, error) {
	var out *Outcome
	err := s.do(ctx, func() error {
		if !s.rendered || index < 0 || index >= len(s.results) {
			return fmt.Errorf("select %d: %w", index, ErrIndexOutOfRange)
		}
		dir := navigationTarget(s.results[index].Object)
		if dir == "" {
			return fmt.Errorf("select %s: %w", s.results[index].Object.Path, ErrNotNavigable)
		}
		snap, err := s.snapshot(ctx)
		if err != nil {
			return err
		}
		out = &Outcome{Code: ResultConfirmed, Snapshot: snap, SelectedDirectory: dir}
		return nil
	})
	return out, err
}

// Back leaves the session without a selection. The outcome carries the snapshot the session
// was restored from, if any. A pending render is stopped.
func (s *Session) Back(ctx context.Context) (*Outcome, error) {
	var out *Outcome
	err := s.do(ctx, func() error {
		s.stopRender()
		out = &Outcome{Code: ResultCancelled, Snapshot: s.restored}
		return nil
	})
	return out, err
}

// MarkStale flags finished results as out of date. Results are left untouched.
func (s *Session) MarkStale(ctx context.Context) error {
	return s.do(ctx, func() error {
		if s.state == StateDone || s.state == StateEmpty {
			s.stale = true
		}
		return nil
	})
}

// Dispose cancels in-flight work, drops the state and stops the session goroutine.
// It is safe to call more than once.
func (s *Session) Dispose() {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	<-s.stopped
}

// Done is closed once the session goroutine has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.stopped
}

func navigationTarget(obj *models.FileSystemObject) string {
	if obj == nil {
		return ""
	}
	switch obj.Kind {
	case models.KindParent:
		return obj.Parent
	case models.KindDirectory:
		return obj.Path
	case models.KindSymlink:
		if obj.LinkTarget != nil && obj.LinkTarget.Kind == models.KindDirectory {
			return obj.LinkTarget.Path
		}
	}
	return ""
}

func lastSearchText(terms []string) string {
	return strings.TrimSpace(strings.Join(terms, " "))
}
