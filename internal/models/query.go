package models

import (
	"errors"
	"strings"
)

const (
	// MaxQuerySlots is the maximum number of terms a query holds. Extra terms are dropped.
	MaxQuerySlots = 5
	// DefaultMinTermLength is the shortest term that runs without asking the user first.
	DefaultMinTermLength = 3
)

// ErrEmptyQuery is returned when a query has no usable terms.
var ErrEmptyQuery = errors.New("query has no terms")

// Query is an ordered set of search terms. Terms are matched against entry names with OR semantics.
type Query struct {
	Terms []string `json:"terms"`
	// Voice marks terms that came from speech recognition. Voice terms are filtered before
	// the query is built and are never stored as recent queries.
	Voice bool `json:"voice,omitempty"`
}

// NewQuery fills the query slots in order with the non-blank terms, up to MaxQuerySlots.
func NewQuery(terms []string, voice bool) Query {
	q := Query{Voice: voice}
	for _, t := range terms {
		if strings.TrimSpace(t) == "" {
			continue
		}
		if len(q.Terms) == MaxQuerySlots {
			break
		}
		q.Terms = append(q.Terms, t)
	}
	return q
}

// Validate returns ErrEmptyQuery when the query has no terms.
func (q Query) Validate() error {
	if len(q.Terms) == 0 {
		return ErrEmptyQuery
	}
	return nil
}

// ShortTerms returns the terms whose trimmed length is below min.
func (q Query) ShortTerms(min int) []string {
	var short []string
	for _, t := range q.Terms {
		if len([]rune(strings.TrimSpace(t))) < min {
			short = append(short, t)
		}
	}
	return short
}

// Normalized returns the terms trimmed and lowercased, for case-insensitive matching.
func (q Query) Normalized() []string {
	out := make([]string, 0, len(q.Terms))
	for _, t := range q.Terms {
		out = append(out, strings.ToLower(strings.TrimSpace(t)))
	}
	return out
}

// String joins the terms with " | " for display.
func (q Query) String() string {
	return strings.Join(q.Terms, " | ")
}

// FilterVoiceTerms drops blank terms and terms shorter than min.
// Speech recognizers return many short fragments; these are discarded instead of confirmed.
func FilterVoiceTerms(terms []string, min int) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if len([]rune(strings.TrimSpace(t))) < min {
			continue
		}
		out = append(out, t)
	}
	return out
}
