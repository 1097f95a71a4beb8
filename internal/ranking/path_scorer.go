package ranking

import (
	"path/filepath"
	"strings"

	"github.com/hyperjump/seek/internal/models"
)

// PathScorer scores entries based on term matches in the directories that contain them.
type PathScorer struct {
	config *RankingConfig
}

// NewPathScorer creates a PathScorer. A nil config uses DefaultRankingConfig.
func NewPathScorer(config *RankingConfig) *PathScorer {
	if config == nil {
		config = DefaultRankingConfig()
	}
	return &PathScorer{config: config}
}

// Score calculates the path match score of obj. The entry's own name is not scored here.
func (s *PathScorer) Score(query models.Query, obj *models.FileSystemObject) float64 {
	if obj == nil || obj.Path == "" {
		return 0
	}
	terms := query.Normalized()
	if len(terms) == 0 {
		return 0
	}
	components := ExtractPathComponents(obj.Path)
	if len(components) == 0 {
		return 0
	}

	total := 0.0
	matchedComponents := 0
	for _, component := range components {
		if score := s.scoreComponent(terms, strings.ToLower(component)); score > 0 {
			total += score
			matchedComponents++
		}
	}
	if matchedComponents > 1 {
		total += s.config.PathComponentBonus * float64(matchedComponents-1)
	}
	return total
}

func (s *PathScorer) scoreComponent(terms []string, component string) float64 {
	best := 0.0
	for _, t := range terms {
		if isGlob(t) {
			if ok, _ := filepath.Match(t, component); ok {
				best = max(best, s.config.PathPartialMatchScore)
			}
			continue
		}
		if component == t {
			best = max(best, s.config.PathExactMatchScore)
			continue
		}
		if !strings.Contains(component, t) {
			continue
		}
		// Partial matches scale with how much of the component the term covers.
		ratio := float64(len(t)) / float64(len(component))
		best = max(best, s.config.PathPartialMatchScore+(s.config.PathExactMatchScore-s.config.PathPartialMatchScore)*ratio)
		if strings.HasPrefix(component, t) {
			best = max(best, s.config.PathPartialMatchScore*1.2)
		}
	}
	return best
}

// ExtractPathComponents returns the directory names of path, outermost first, without the
// final element.
func ExtractPathComponents(path string) []string {
	dir := filepath.Dir(filepath.Clean(path))
	var components []string
	for dir != "" && dir != "." {
		base := filepath.Base(dir)
		if base != "" && base != "." && base != string(filepath.Separator) {
			components = append(components, base)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	for i, j := 0, len(components)-1; i < j; i, j = i+1, j-1 {
		components[i], components[j] = components[j], components[i]
	}
	return components
}
