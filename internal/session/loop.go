package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/seek/internal/finder"
	"github.com/hyperjump/seek/internal/models"
)

func (s *Session) loop() {
	defer close(s.stopped)
	for {
		var events <-chan finder.Event
		if s.exec != nil {
			events = s.exec.Events()
		}
		select {
		case <-s.quit:
			s.teardown()
			return
		case req := <-s.requests:
			s.handle(req)
		case ev, ok := <-events:
			if !ok {
				s.exec = nil
				continue
			}
			s.handleEvent(ev)
		case r := <-s.renders:
			s.handleRender(r)
		}
	}
}

func (s *Session) handle(req *request) {
	defer func() {
		if r := recover(); r != nil {
			req.err = fmt.Errorf("session %s: panic: %v", s.id, r)
			s.logger.Error("session command panicked", zap.String("session", s.id), zap.Any("panic", r))
		}
		close(req.done)
	}()
	req.err = req.fn()
}

func (s *Session) start(ctx context.Context, in Input) (state State, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("start search: panic: %v", r)
		}
		if err != nil {
			state = s.state
			s.logger.Warn("failed to start search", zap.String("session", s.id), zap.Error(err))
			s.notify(err)
		}
	}()

	terms := in.Terms
	if in.Voice {
		terms = models.FilterVoiceTerms(terms, s.minTermLength)
	} else if s.prefs != nil {
		if err := s.prefs.SetLastSearch(ctx, lastSearchText(in.Terms)); err != nil {
			s.logger.Warn("failed to save last search", zap.Error(err))
		}
	}
	query := models.NewQuery(terms, in.Voice)
	if err := query.Validate(); err != nil {
		return s.state, err
	}
	directory := in.Directory
	if directory == "" {
		directory = s.rootDirectory
	}

	if short := query.ShortTerms(s.minTermLength); len(short) > 0 {
		prev := s.state
		if s.pending != nil {
			prev = s.pending.prev
		}
		s.pending = &pendingSearch{query: query, directory: directory, prev: prev}
		s.state = StateAwaitingConfirmation
		s.observer.ConfirmationRequired(query, short)
		return s.state, nil
	}
	return s.run(ctx, query, directory)
}

func (s *Session) confirm(ctx context.Context, proceed bool) (state State, err error) {
	if s.state != StateAwaitingConfirmation || s.pending == nil {
		return s.state, ErrNotAwaitingConfirmation
	}
	p := s.pending
	s.pending = nil
	s.state = p.prev
	if !proceed {
		s.logger.Debug("search declined", zap.String("session", s.id), zap.String("query", p.query.String()))
		return s.state, nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("start search: panic: %v", r)
		}
		if err != nil {
			state = s.state
			s.logger.Warn("failed to start search", zap.String("session", s.id), zap.Error(err))
			s.notify(err)
		}
	}()
	return s.run(ctx, p.query, p.directory)
}

// run asks the executor for a new search and, once it is accepted, replaces the previous one.
func (s *Session) run(ctx context.Context, query models.Query, directory string) (State, error) {
	exec, err := s.executor.FindFiles(s.ctx, directory, query)
	if err != nil {
		return s.state, fmt.Errorf("find files in %s: %w", directory, err)
	}

	s.stopRender()
	s.abandonExecution()
	if s.tracker != nil {
		s.tracker.Untrack(s.id)
	}
	s.exec = exec
	s.pending = nil
	s.query = query
	s.directory = directory
	s.accumulated = nil
	s.results = nil
	s.rendered = false
	s.restored = nil
	s.stale = false
	s.failed = false
	s.state = StateRunning

	if !query.Voice && s.recent != nil {
		for _, term := range query.Terms {
			if err := s.recent.SaveRecentQuery(ctx, term); err != nil {
				s.logger.Warn("failed to save recent query", zap.String("term", term), zap.Error(err))
			}
		}
	}
	s.logger.Debug("search started",
		zap.String("session", s.id),
		zap.String("execution", exec.ID()),
		zap.String("directory", directory),
		zap.String("query", query.String()))
	s.observer.SearchStarted(query, directory)
	return s.state, nil
}

func (s *Session) handleEvent(ev finder.Event) {
	switch e := ev.(type) {
	case finder.StartEvent:
		s.observer.Progress(0)
	case finder.PartialResultEvent:
		if s.failed {
			return
		}
		s.accumulated = append(s.accumulated, e.Results...)
		s.observer.Progress(len(s.accumulated))
	case finder.ErrorEvent:
		s.onError(e.Err)
	case finder.EndEvent:
		s.onEnd(e.Cancelled)
	}
}

func (s *Session) onError(cause error) {
	s.logger.Warn("search failed", zap.String("session", s.id), zap.Error(cause))
	s.failed = true
	s.accumulated = nil
	s.results = nil
	s.rendered = false
	s.notify(fmt.Errorf("search %s: %w", s.directory, cause))
}

func (s *Session) onEnd(cancelled bool) {
	s.exec = nil
	s.dismissProgress()
	s.logger.Debug("search ended",
		zap.String("session", s.id),
		zap.Bool("cancelled", cancelled),
		zap.Int("total", len(s.accumulated)))

	if len(s.accumulated) == 0 {
		s.rendered = true
		s.setState(StateEmpty)
		if !s.failed && s.tracker != nil {
			s.tracker.Track(s.id, s.directory)
		}
		s.observer.EmptyResults()
		return
	}
	s.setState(StateRendering)
	s.startRender()
}

func (s *Session) startRender() {
	s.stopRender()
	ctx, cancel := context.WithCancel(s.ctx)
	s.renderCancel = cancel
	gen := s.renderGen
	query := s.query
	objs := s.accumulated
	go func() {
		results, err := s.ranker.Rank(ctx, query, objs)
		select {
		case s.renders <- renderResult{gen: gen, results: results, err: err}:
		case <-ctx.Done():
		}
	}()
}

// stopRender cancels a pending render; its result, if already sent, is ignored.
func (s *Session) stopRender() {
	if s.renderCancel != nil {
		s.renderCancel()
		s.renderCancel = nil
	}
	s.renderGen++
}

func (s *Session) handleRender(r renderResult) {
	if r.gen != s.renderGen {
		return
	}
	if s.renderCancel != nil {
		s.renderCancel()
		s.renderCancel = nil
	}
	if r.err != nil {
		s.logger.Debug("render stopped", zap.String("session", s.id), zap.Error(r.err))
		return
	}
	s.results = r.results
	s.rendered = true
	s.setState(StateDone)
	if s.tracker != nil {
		s.tracker.Track(s.id, s.directory)
	}
	s.observer.ResultsRendered(r.results)
}

func (s *Session) restore(snap *models.Snapshot) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("restore snapshot: panic: %v", r)
		}
		if err != nil {
			s.logger.Warn("failed to restore snapshot", zap.String("session", s.id), zap.Error(err))
			s.notify(err)
		}
	}()
	if snap == nil {
		return ErrInvalidSnapshot
	}

	results := make([]*models.SearchResult, 0, len(snap.Results))
	objs := make([]*models.FileSystemObject, 0, len(snap.Results))
	for _, r := range snap.Results {
		if r == nil || r.Object == nil {
			return fmt.Errorf("%w: result without object", ErrInvalidSnapshot)
		}
		results = append(results, r)
		objs = append(objs, r.Object)
	}

	s.stopRender()
	s.abandonExecution()
	s.pending = nil
	s.query = snap.Query
	s.directory = snap.Directory
	s.accumulated = objs
	s.results = results
	s.rendered = true
	s.restored = snap
	s.stale = false
	s.failed = false
	if s.tracker != nil {
		s.tracker.Track(s.id, s.directory)
	}
	if len(results) == 0 {
		s.state = StateEmpty
		s.observer.EmptyResults()
		return nil
	}
	s.state = StateDone
	s.observer.ResultsRendered(results)
	return nil
}

func (s *Session) snapshot(ctx context.Context) (*models.Snapshot, error) {
	if len(s.query.Terms) == 0 && s.restored == nil {
		return nil, ErrNoSearch
	}
	results := append([]*models.SearchResult(nil), s.results...)
	if !s.rendered {
		var err error
		results, err = s.ranker.Rank(ctx, s.query, s.accumulated)
		if err != nil {
			return nil, fmt.Errorf("rank results: %w", err)
		}
	}
	return &models.Snapshot{
		ID:        uuid.New().String(),
		Directory: s.directory,
		Query:     s.query,
		Results:   results,
		CreatedAt: time.Now(),
	}, nil
}

// setState updates the state a pending confirmation returns to, or the state itself.
func (s *Session) setState(st State) {
	if s.pending != nil {
		s.pending.prev = st
		return
	}
	s.state = st
}

// abandonExecution stops the current execution and stops reading its events.
func (s *Session) abandonExecution() {
	if s.exec == nil {
		return
	}
	s.exec.Cancel()
	s.exec.Abandon()
	s.exec = nil
	s.dismissProgress()
}

func (s *Session) teardown() {
	s.stopRender()
	s.abandonExecution()
	if s.tracker != nil {
		s.tracker.Untrack(s.id)
	}
	s.pending = nil
	s.accumulated = nil
	s.results = nil
	s.restored = nil
	s.state = StateClosed
	s.cancelCtx()
	s.logger.Debug("session disposed", zap.String("session", s.id))
}

// dismissProgress never fails; observer errors and panics are logged.
func (s *Session) dismissProgress() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("dismiss progress panicked", zap.String("session", s.id), zap.Any("panic", r))
		}
	}()
	if err := s.observer.DismissProgress(); err != nil {
		s.logger.Warn("failed to dismiss progress", zap.String("session", s.id), zap.Error(err))
	}
}

func (s *Session) notify(err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("notify panicked", zap.String("session", s.id), zap.Any("panic", r))
		}
	}()
	s.observer.Notify(err)
}
