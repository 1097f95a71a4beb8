package ranking

import (
	"context"
	"sort"

	"github.com/hyperjump/seek/internal/models"
)

// Ranker turns accumulated matches into ordered search results.
type Ranker struct {
	config  *RankingConfig
	scorer  *FilenameScorer
	path    *PathScorer
	recency *RecencyMultiplier
}

// NewRanker creates a ranker. A nil config uses DefaultRankingConfig.
func NewRanker(config *RankingConfig) *Ranker {
	if config == nil {
		config = DefaultRankingConfig()
	}
	return &Ranker{
		config:  config,
		scorer:  NewFilenameScorer(config),
		path:    NewPathScorer(config),
		recency: NewRecencyMultiplier(config),
	}
}

// Score returns the relevance of obj: the name score plus the weighted path score, scaled
// by recency. Entries whose name matches no term score zero.
func (r *Ranker) Score(query models.Query, obj *models.FileSystemObject) float64 {
	score := r.scorer.Score(query, obj)
	if score == 0 {
		return 0
	}
	score += r.config.PathWeight * r.path.Score(query, obj)
	return r.recency.Multiply(obj, score)
}

// Rank scores objs and sorts them by relevance, highest first; ties keep path order.
// It returns ctx.Err() when cancelled part way, so a superseded render can be dropped.
func (r *Ranker) Rank(ctx context.Context, query models.Query, objs []*models.FileSystemObject) ([]*models.SearchResult, error) {
	results := make([]*models.SearchResult, 0, len(objs))
	for i, obj := range objs {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		results = append(results, &models.SearchResult{
			Object:     obj,
			Relevance:  r.Score(query, obj),
			Highlights: Highlight(query, obj.Name),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		return results[i].Object.Path < results[j].Object.Path
	})
	return results, nil
}
