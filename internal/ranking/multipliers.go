package ranking

import (
	"time"

	"github.com/hyperjump/seek/internal/models"
)

// RecencyMultiplier boosts entries that were modified recently.
type RecencyMultiplier struct {
	config *RankingConfig
	now    func() time.Time
}

// NewRecencyMultiplier creates a RecencyMultiplier. A nil config uses DefaultRankingConfig.
func NewRecencyMultiplier(config *RankingConfig) *RecencyMultiplier {
	if config == nil {
		config = DefaultRankingConfig()
	}
	return &RecencyMultiplier{config: config, now: time.Now}
}

// Multiply applies the recency multiplier of obj to baseScore. A zero score, an unknown
// modification time or a disabled multiplier leave the score unchanged.
func (m *RecencyMultiplier) Multiply(obj *models.FileSystemObject, baseScore float64) float64 {
	if !m.config.RecencyEnabled || baseScore == 0 || obj == nil || obj.ModTime.IsZero() {
		return baseScore
	}
	return baseScore * m.calculateMultiplier(obj.ModTime)
}

func (m *RecencyMultiplier) calculateMultiplier(modTime time.Time) float64 {
	age := m.now().Sub(modTime)
	switch {
	case age < 24*time.Hour:
		return m.config.Recency24hMultiplier
	case age < 7*24*time.Hour:
		return m.config.RecencyWeekMultiplier
	case age < 30*24*time.Hour:
		return m.config.RecencyMonthMultiplier
	default:
		return 1.0
	}
}
