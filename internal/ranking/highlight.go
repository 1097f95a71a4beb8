package ranking

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/seek/internal/models"
)

// Highlight returns the merged, sorted byte spans of name matched by the query terms.
// A glob term that matches marks the whole name.
func Highlight(query models.Query, name string) []models.MatchSpan {
	lower := strings.ToLower(name)
	var spans []models.MatchSpan
	for _, t := range query.Normalized() {
		if t == "" {
			continue
		}
		if isGlob(t) {
			if termMatches(t, lower) {
				spans = append(spans, models.MatchSpan{Start: 0, End: len(name)})
			}
			continue
		}
		spans = append(spans, foldIndexAll(name, t)...)
	}
	return mergeSpans(spans)
}

// foldIndexAll returns the spans of every non-overlapping occurrence of the lowercase term
// in name. Runes are compared one by one, so the offsets index name even when lowercasing
// changes its byte length.
func foldIndexAll(name, term string) []models.MatchSpan {
	var spans []models.MatchSpan
	for i := 0; i < len(name); {
		if end, ok := hasFoldPrefix(name, i, term); ok {
			spans = append(spans, models.MatchSpan{Start: i, End: end})
			i = end
			continue
		}
		_, size := utf8.DecodeRuneInString(name[i:])
		i += size
	}
	return spans
}

func hasFoldPrefix(name string, i int, term string) (int, bool) {
	for _, tr := range term {
		if i >= len(name) {
			return 0, false
		}
		r, size := utf8.DecodeRuneInString(name[i:])
		if unicode.ToLower(r) != tr {
			return 0, false
		}
		i += size
	}
	return i, true
}

func mergeSpans(spans []models.MatchSpan) []models.MatchSpan {
	if len(spans) < 2 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})
	out := spans[:1]
	for _, sp := range spans[1:] {
		last := &out[len(out)-1]
		if sp.Start <= last.End {
			if sp.End > last.End {
				last.End = sp.End
			}
			continue
		}
		out = append(out, sp)
	}
	return out
}
