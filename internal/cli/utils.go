// Package cli provides CLI output and terminal interaction for seek.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/seek/internal/models"
	"github.com/hyperjump/seek/pkg/utils"
)

// OutputFormat is the format for CLI output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one path per line, for piping into other tools.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a -format flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, compact or json)", s)
	}
}

// SearchReport is what a finished CLI search prints.
type SearchReport struct {
	Query      string                 `json:"query"`
	Directory  string                 `json:"directory"`
	ElapsedMS  int64                  `json:"elapsed_ms"`
	Cancelled  bool                   `json:"cancelled,omitempty"`
	Total      int                    `json:"total"`
	SnapshotID string                 `json:"snapshot_id,omitempty"`
	Results    []*models.SearchResult `json:"results"`
}

// WriteSearchResults writes a search report to w in the given format.
func WriteSearchResults(w io.Writer, report *SearchReport, format OutputFormat) error {
	switch format {
	case OutputJSON:
		if report.Results == nil {
			report.Results = []*models.SearchResult{}
		}
		return writeJSON(w, report)
	case OutputCompact:
		for _, r := range report.Results {
			if _, err := fmt.Fprintln(w, r.Object.Path); err != nil {
				return err
			}
		}
		return nil
	default:
		writeSearchResultsText(w, report)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, report *SearchReport) {
	status := ""
	if report.Cancelled {
		status = " (cancelled)"
	}
	fmt.Fprintf(w, "\nFound %d results for %s in %s in %dms%s\n\n",
		report.Total, report.Query, report.Directory, report.ElapsedMS, status)
	for i, r := range report.Results {
		writeOneResult(w, i, r)
	}
	if report.SnapshotID != "" {
		fmt.Fprintf(w, "\nSnapshot: %s (seek restore %s)\n", report.SnapshotID, report.SnapshotID)
	}
}

func writeOneResult(w io.Writer, index int, r *models.SearchResult) {
	obj := r.Object
	kind := string(obj.Kind)
	if obj.Kind == models.KindSymlink && obj.LinkTarget != nil {
		kind = "symlink -> " + obj.LinkTarget.Path
	}
	fmt.Fprintf(w, "%3d. %-40s %6.1f  %s\n", index, HighlightName(obj.Name, r.Highlights), r.Relevance, kind)
	fmt.Fprintf(w, "     %s\n", utils.TruncateLeft(obj.Parent, 80))
}

// HighlightName wraps the highlighted spans of name in square brackets.
// Spans outside name are ignored.
func HighlightName(name string, spans []models.MatchSpan) string {
	if len(spans) == 0 {
		return name
	}
	var b strings.Builder
	pos := 0
	for _, sp := range spans {
		if sp.Start < pos || sp.End > len(name) || sp.Start >= sp.End {
			continue
		}
		b.WriteString(name[pos:sp.Start])
		b.WriteByte('[')
		b.WriteString(name[sp.Start:sp.End])
		b.WriteByte(']')
		pos = sp.End
	}
	b.WriteString(name[pos:])
	return b.String()
}

// WriteRecentQueries writes recent query terms, newest first.
func WriteRecentQueries(w io.Writer, terms []string, format OutputFormat) error {
	if format == OutputJSON {
		if terms == nil {
			terms = []string{}
		}
		return writeJSON(w, map[string][]string{"queries": terms})
	}
	if len(terms) == 0 && format == OutputText {
		_, err := fmt.Fprintln(w, "No recent queries")
		return err
	}
	for _, t := range terms {
		if _, err := fmt.Fprintln(w, t); err != nil {
			return err
		}
	}
	return nil
}

// WriteSnapshots writes a listing of saved snapshots.
func WriteSnapshots(w io.Writer, snaps []*models.Snapshot, format OutputFormat) error {
	switch format {
	case OutputJSON:
		type summary struct {
			ID        string    `json:"id"`
			Directory string    `json:"directory"`
			Query     string    `json:"query"`
			Results   int       `json:"results"`
			CreatedAt time.Time `json:"created_at"`
		}
		out := make([]summary, 0, len(snaps))
		for _, s := range snaps {
			out = append(out, summary{ID: s.ID, Directory: s.Directory, Query: s.Query.String(), Results: len(s.Results), CreatedAt: s.CreatedAt})
		}
		return writeJSON(w, map[string]interface{}{"snapshots": out})
	case OutputCompact:
		for _, s := range snaps {
			if _, err := fmt.Fprintln(w, s.ID); err != nil {
				return err
			}
		}
		return nil
	default:
		if len(snaps) == 0 {
			_, err := fmt.Fprintln(w, "No saved snapshots")
			return err
		}
		for _, s := range snaps {
			fmt.Fprintf(w, "%s  %s  %-30s %4d results  %s\n",
				s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), utils.Truncate(s.Query.String(), 30), len(s.Results), s.Directory)
		}
		return nil
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
