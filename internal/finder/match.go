package finder

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hyperjump/seek/internal/models"
)

// matcher tests entry names against query terms. A name matches when any term matches:
// terms containing glob metacharacters are matched as shell patterns against the whole
// name, other terms as substrings. Matching ignores case.
type matcher struct {
	terms []string
	globs []bool
}

func newMatcher(q models.Query) (*matcher, error) {
	m := &matcher{}
	for _, t := range q.Normalized() {
		if t == "" {
			continue
		}
		glob := isGlob(t)
		if glob {
			if _, err := filepath.Match(t, ""); err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", t, err)
			}
		}
		m.terms = append(m.terms, t)
		m.globs = append(m.globs, glob)
	}
	if len(m.terms) == 0 {
		return nil, models.ErrEmptyQuery
	}
	return m, nil
}

func (m *matcher) match(name string) bool {
	lower := strings.ToLower(name)
	for i, t := range m.terms {
		if m.globs[i] {
			if ok, _ := filepath.Match(t, lower); ok {
				return true
			}
			continue
		}
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func isGlob(term string) bool {
	return strings.ContainsAny(term, "*?[")
}
