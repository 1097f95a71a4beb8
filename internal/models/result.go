// Package models defines queries, matched file-system entries, search results and snapshots.
package models

import (
	"io/fs"
	"path/filepath"
	"time"
)

// FileKind classifies a file-system entry.
type FileKind string

const (
	KindFile      FileKind = "file"
	KindDirectory FileKind = "directory"
	KindSymlink   FileKind = "symlink"
	// KindParent is the ".." entry of a directory; selecting it navigates to Parent.
	// FSExecutor never emits it. It only appears in snapshots built by other producers
	// and restored into a session.
	KindParent FileKind = "parent"
)

// FileSystemObject is a file-system entry matched by a search.
type FileSystemObject struct {
	Name    string      `json:"name"`
	Path    string      `json:"path"`
	Parent  string      `json:"parent"`
	Kind    FileKind    `json:"kind"`
	Size    int64       `json:"size"`
	Mode    fs.FileMode `json:"mode"`
	ModTime time.Time   `json:"mod_time"`
	// LinkTarget is the resolved target of a symlink, when it could be resolved.
	LinkTarget *FileSystemObject `json:"link_target,omitempty"`
}

// NewFileSystemObject builds an entry from path and its Lstat info.
func NewFileSystemObject(path string, info fs.FileInfo) *FileSystemObject {
	f := &FileSystemObject{
		Name:    info.Name(),
		Path:    path,
		Parent:  filepath.Dir(path),
		Kind:    KindFile,
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
	}
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		f.Kind = KindSymlink
	case info.IsDir():
		f.Kind = KindDirectory
	}
	return f
}

// MatchSpan is a half-open byte range [Start, End) of a term match inside a name.
type MatchSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SearchResult is a matched entry with its relevance and highlight spans.
type SearchResult struct {
	Object     *FileSystemObject `json:"object"`
	Relevance  float64           `json:"relevance"`
	Highlights []MatchSpan       `json:"highlights,omitempty"`
}

// Snapshot is the saved state of a search session: directory, rendered results and query.
// A restored snapshot is shown as-is; the search is not run again.
type Snapshot struct {
	ID        string          `json:"id"`
	Directory string          `json:"directory"`
	Query     Query           `json:"query"`
	Results   []*SearchResult `json:"results"`
	CreatedAt time.Time       `json:"created_at"`
}
