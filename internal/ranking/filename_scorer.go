package ranking

import (
	"path/filepath"
	"strings"

	"github.com/hyperjump/seek/internal/models"
)

// FilenameScorer scores entries based on how the query terms match their name.
type FilenameScorer struct {
	config *RankingConfig
}

// NewFilenameScorer creates a FilenameScorer. A nil config uses DefaultRankingConfig.
func NewFilenameScorer(config *RankingConfig) *FilenameScorer {
	if config == nil {
		config = DefaultRankingConfig()
	}
	return &FilenameScorer{config: config}
}

// Score calculates the relevance of obj for query. Entries matching no term score zero.
func (s *FilenameScorer) Score(query models.Query, obj *models.FileSystemObject) float64 {
	if obj == nil || obj.Name == "" {
		return 0
	}
	terms := query.Normalized()
	if len(terms) == 0 {
		return 0
	}
	name := strings.ToLower(obj.Name)
	base := strings.TrimSuffix(name, filepath.Ext(name))

	matched := 0
	score := 0.0
	for _, t := range terms {
		if !termMatches(t, name) {
			continue
		}
		matched++
		if t == name || t == base {
			score = max(score, s.config.ExactFilenameScore)
		}
		if ext := strings.TrimPrefix(filepath.Ext(name), "."); ext != "" && strings.TrimPrefix(t, ".") == ext {
			score = max(score, s.config.ExtensionMatchScore)
		}
	}
	if matched == 0 {
		return 0
	}

	switch {
	case matched == len(terms) && len(terms) > 1 && termsInOrder(terms, name):
		score = max(score, s.config.AllWordsInOrderScore)
	case matched == len(terms) && len(terms) > 1:
		score = max(score, s.config.AllWordsAnyOrderScore)
	default:
		score = max(score, s.config.SubstringMatchScore*float64(matched)/float64(len(terms)))
	}

	for _, t := range terms {
		if !isGlob(t) && strings.HasPrefix(name, t) {
			score += s.config.PrefixMatchBonus
			break
		}
	}
	score += s.multipleOccurrenceBonus(terms, name)
	if obj.Kind == models.KindDirectory || obj.Kind == models.KindParent {
		score += s.config.DirectoryBonus
	}
	return score
}

func (s *FilenameScorer) multipleOccurrenceBonus(terms []string, name string) float64 {
	bonus := 0.0
	for _, t := range terms {
		if isGlob(t) {
			continue
		}
		if count := strings.Count(name, t); count > 1 {
			bonus += s.config.MultipleOccurrenceBonus * (1.0 - 1.0/float64(count))
		}
	}
	return bonus
}

func termMatches(term, name string) bool {
	if isGlob(term) {
		ok, _ := filepath.Match(term, name)
		return ok
	}
	return strings.Contains(name, term)
}

// termsInOrder reports whether the substring terms appear in name in query order.
func termsInOrder(terms []string, name string) bool {
	pos := 0
	for _, t := range terms {
		if isGlob(t) {
			continue
		}
		i := strings.Index(name[pos:], t)
		if i < 0 {
			return false
		}
		pos += i + len(t)
	}
	return true
}

func isGlob(term string) bool {
	return strings.ContainsAny(term, "*?[")
}
