package session

import "errors"

var (
	// ErrSessionNotFound is returned by the Manager for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosed is returned for commands sent to a disposed session.
	ErrSessionClosed = errors.New("session closed")
	// ErrTooManySessions is returned when the Manager is at capacity.
	ErrTooManySessions = errors.New("too many sessions")
	// ErrNotAwaitingConfirmation is returned by Confirm when no search is waiting for it.
	ErrNotAwaitingConfirmation = errors.New("session is not awaiting confirmation")
	// ErrNoSearch is returned when a snapshot is requested before any search ran or was restored.
	ErrNoSearch = errors.New("session has no search")
	// ErrIndexOutOfRange is returned by Select for an index outside the rendered results.
	ErrIndexOutOfRange = errors.New("result index out of range")
	// ErrNotNavigable is returned by Select for results that are not directories.
	ErrNotNavigable = errors.New("result is not a directory")
	// ErrInvalidSnapshot is returned by Restore for a nil snapshot.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)
