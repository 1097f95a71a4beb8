// Package finder runs file-system searches in the background and streams results as typed events.
package finder

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/hyperjump/seek/internal/models"
)

// Event is emitted by an Execution. The order is StartEvent, zero or more
// PartialResultEvent, an optional ErrorEvent, then exactly one EndEvent.
type Event interface {
	isEvent()
}

// StartEvent marks the beginning of a search.
type StartEvent struct{}

// PartialResultEvent carries a batch of matches in discovery order.
type PartialResultEvent struct {
	Results []*models.FileSystemObject
}

// EndEvent is the last event of an execution.
type EndEvent struct {
	Cancelled bool
}

// ErrorEvent reports a failure of the search backend. An EndEvent still follows.
type ErrorEvent struct {
	Err error
}

func (StartEvent) isEvent()         {}
func (PartialResultEvent) isEvent() {}
func (EndEvent) isEvent()           {}
func (ErrorEvent) isEvent()         {}

// Executor starts searches.
type Executor interface {
	// FindFiles starts searching directory for entries matching query. Errors that prevent the
	// search from starting are returned directly; later failures arrive as ErrorEvent.
	FindFiles(ctx context.Context, directory string, query models.Query) (*Execution, error)
}

// Execution is the handle of one running search.
type Execution struct {
	id        string
	events    chan Event
	ctx       context.Context
	cancel    context.CancelFunc
	abandoned chan struct{}
	done      chan struct{}

	mu        sync.Mutex
	canceled  bool
	finished  bool
	abandonMu sync.Once
}

// Emitter is the producing side of an Execution, used by executor implementations.
type Emitter struct {
	e *Execution
}

// NewExecution creates an execution whose context derives from parent, and its emitter.
func NewExecution(parent context.Context) (*Execution, *Emitter) {
	ctx, cancel := context.WithCancel(parent)
	e := &Execution{
		id:        uuid.New().String(),
		events:    make(chan Event, 16),
		ctx:       ctx,
		cancel:    cancel,
		abandoned: make(chan struct{}),
		done:      make(chan struct{}),
	}
	return e, &Emitter{e: e}
}

// ID returns the execution id.
func (e *Execution) ID() string {
	return e.id
}

// Events returns the event stream. It is closed after the EndEvent.
func (e *Execution) Events() <-chan Event {
	return e.events
}

// Cancel requests cancellation. It returns true only for the call that requested it; calls
// while cancellation is pending, or after the execution finished, return false.
// Cancellation is cooperative: the producer stops at its next check.
func (e *Execution) Cancel() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.canceled || e.finished {
		return false
	}
	e.canceled = true
	e.cancel()
	return true
}

// IsCanceled reports whether Cancel succeeded for this execution.
func (e *Execution) IsCanceled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canceled
}

// Done is closed once the EndEvent has been emitted.
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Abandon tells the producer nobody reads events anymore. It cancels the search and
// unblocks any pending send.
func (e *Execution) Abandon() {
	e.abandonMu.Do(func() {
		e.cancel()
		close(e.abandoned)
	})
}

// Context is cancelled when the execution is cancelled or abandoned.
func (em *Emitter) Context() context.Context {
	return em.e.ctx
}

// Start emits StartEvent.
func (em *Emitter) Start() bool {
	return em.send(StartEvent{})
}

// Partial emits a batch of results. Empty batches are not sent.
func (em *Emitter) Partial(results []*models.FileSystemObject) bool {
	if len(results) == 0 {
		return true
	}
	return em.send(PartialResultEvent{Results: results})
}

// Error emits ErrorEvent.
func (em *Emitter) Error(err error) bool {
	return em.send(ErrorEvent{Err: err})
}

// End emits EndEvent, marks the execution finished and closes the stream.
// The event reports Cancelled when the context was cancelled before the end.
func (em *Emitter) End() {
	e := em.e
	e.mu.Lock()
	if e.finished {
		e.mu.Unlock()
		return
	}
	e.finished = true
	cancelled := e.ctx.Err() != nil
	e.mu.Unlock()

	em.send(EndEvent{Cancelled: cancelled})
	close(e.events)
	close(e.done)
	e.cancel()
}

func (em *Emitter) send(ev Event) bool {
	select {
	case em.e.events <- ev:
		return true
	case <-em.e.abandoned:
		return false
	}
}
