// Package storage defines persistence for recent queries, preferences and session snapshots.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/seek/internal/models"
)

// ErrSnapshotNotFound is returned when no snapshot exists for an id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// RecentQueries stores executed query terms for suggestions.
type RecentQueries interface {
	SaveRecentQuery(ctx context.Context, term string) error
	// RecentQueries returns up to limit terms starting with prefix, newest first.
	RecentQueries(ctx context.Context, prefix string, limit int) ([]string, error)
	ClearRecentQueries(ctx context.Context) error
}

// Preferences stores small user settings such as the last free-text search.
type Preferences interface {
	LastSearch(ctx context.Context) (string, error)
	SetLastSearch(ctx context.Context, term string) error
}

// Snapshots persists session snapshots so a search survives a restart.
type Snapshots interface {
	SaveSnapshot(ctx context.Context, snap *models.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error)
	DeleteSnapshot(ctx context.Context, id string) error
	ListSnapshots(ctx context.Context, limit int) ([]*models.Snapshot, error)
}

// Storage groups all persistence operations.
type Storage interface {
	RecentQueries
	Preferences
	Snapshots

	// Stats
	CountRecentQueries(ctx context.Context) (int64, error)
	CountSnapshots(ctx context.Context) (int64, error)

	Close() error
}
