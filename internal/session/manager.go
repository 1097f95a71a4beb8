package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/seek/internal/finder"
	"github.com/hyperjump/seek/internal/models"
	"github.com/hyperjump/seek/internal/storage"
)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the manager logger. Sessions log through it too.
func WithManagerLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithSessionOptions adds options applied to every session the manager creates.
func WithSessionOptions(opts ...Option) ManagerOption {
	return func(m *Manager) {
		m.sessionOpts = append(m.sessionOpts, opts...)
	}
}

// WithObserverFactory sets how the observer of a new session is built.
func WithObserverFactory(f func(id string) Observer) ManagerOption {
	return func(m *Manager) {
		if f != nil {
			m.observers = f
		}
	}
}

// WithMaxSessions caps the number of live sessions. Zero means no limit.
func WithMaxSessions(n int) ManagerOption {
	return func(m *Manager) { m.maxSessions = n }
}

// WithPersistSnapshots saves the snapshot of a session when it is closed.
func WithPersistSnapshots(persist bool) ManagerOption {
	return func(m *Manager) { m.persistSnapshots = persist }
}

// Manager owns the live sessions, keyed by id.
type Manager struct {
	executor         finder.Executor
	store            storage.Storage
	logger           *zap.Logger
	sessionOpts      []Option
	observers        func(id string) Observer
	maxSessions      int
	persistSnapshots bool

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager. store may be nil, in which case nothing is persisted.
func NewManager(executor finder.Executor, store storage.Storage, opts ...ManagerOption) *Manager {
	m := &Manager{
		executor: executor,
		store:    store,
		logger:   zap.NewNop(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.observers == nil {
		m.observers = func(id string) Observer {
			return LogObserver{ID: id, Logger: m.logger}
		}
	}
	return m
}

// Create starts a new idle session.
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return nil, ErrTooManySessions
	}
	id := uuid.New().String()
	opts := []Option{WithLogger(m.logger), WithObserver(m.observers(id))}
	if m.store != nil {
		opts = append(opts, WithRecentQueries(m.store), WithPreferences(m.store))
	}
	opts = append(opts, m.sessionOpts...)
	s := New(id, m.executor, opts...)
	m.sessions[id] = s
	return s, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return s, nil
}

// IDs returns the ids of the live sessions, sorted.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Start creates a session and submits in. The session is discarded when the search cannot start.
func (m *Manager) Start(ctx context.Context, in Input) (*Session, State, error) {
	s, err := m.Create()
	if err != nil {
		return nil, "", err
	}
	state, err := s.Start(ctx, in)
	if err != nil {
		m.remove(s.ID())
		s.Dispose()
		return nil, "", err
	}
	return s, state, nil
}

// Restore creates a session showing snap.
func (m *Manager) Restore(ctx context.Context, snap *models.Snapshot) (*Session, error) {
	s, err := m.Create()
	if err != nil {
		return nil, err
	}
	if err := s.Restore(ctx, snap); err != nil {
		m.remove(s.ID())
		s.Dispose()
		return nil, err
	}
	return s, nil
}

// RestoreByID loads a persisted snapshot and restores it into a new session.
func (m *Manager) RestoreByID(ctx context.Context, snapshotID string) (*Session, error) {
	if m.store == nil {
		return nil, fmt.Errorf("snapshot %s: %w", snapshotID, storage.ErrSnapshotNotFound)
	}
	snap, err := m.store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	return m.Restore(ctx, snap)
}

// MarkStale flags the finished results of session id as out of date.
func (m *Manager) MarkStale(ctx context.Context, id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	return s.MarkStale(ctx)
}

// Select picks a directory result of session id and closes the session. The outcome
// snapshot is persisted so the caller can restore it by id.
func (m *Manager) Select(ctx context.Context, id string, index int) (*Outcome, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	out, err := s.Select(ctx, index)
	if err != nil {
		return nil, err
	}
	if m.store != nil {
		if err := m.store.SaveSnapshot(ctx, out.Snapshot); err != nil {
			return nil, fmt.Errorf("save snapshot: %w", err)
		}
	}
	m.remove(id)
	s.Dispose()
	return out, nil
}

// Close leaves session id without a selection and disposes it. When snapshots are persisted
// the current state is saved first.
func (m *Manager) Close(ctx context.Context, id string) (*Outcome, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	out, err := s.Back(ctx)
	if err != nil {
		return nil, err
	}
	m.persist(ctx, s)
	m.remove(id)
	s.Dispose()
	return out, nil
}

// Shutdown disposes every session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		m.persist(ctx, s)
		s.Dispose()
	}
}

func (m *Manager) persist(ctx context.Context, s *Session) {
	if !m.persistSnapshots || m.store == nil {
		return
	}
	snap, err := s.Snapshot(ctx)
	if errors.Is(err, ErrNoSearch) {
		return
	}
	if err != nil {
		m.logger.Warn("failed to snapshot session", zap.String("session", s.ID()), zap.Error(err))
		return
	}
	if err := m.store.SaveSnapshot(ctx, snap); err != nil {
		m.logger.Warn("failed to persist snapshot", zap.String("session", s.ID()), zap.Error(err))
		return
	}
	m.logger.Debug("snapshot persisted", zap.String("session", s.ID()), zap.String("snapshot", snap.ID))
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
