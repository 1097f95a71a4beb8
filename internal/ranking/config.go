// Package ranking scores matched file-system entries against a query and orders them for display.
package ranking

// RankingConfig holds the score values used by the scorers and multipliers.
type RankingConfig struct {
	// PathWeight scales the path score added on top of the name score.
	PathWeight float64 `yaml:"path_weight"` // default: 0.3

	ExactFilenameScore    float64 `yaml:"exact_filename_score"`      // default: 100
	AllWordsInOrderScore  float64 `yaml:"all_words_in_order_score"`  // default: 90
	AllWordsAnyOrderScore float64 `yaml:"all_words_any_order_score"` // default: 80
	SubstringMatchScore   float64 `yaml:"substring_match_score"`     // default: 60
	PrefixMatchBonus      float64 `yaml:"prefix_match_bonus"`        // default: 5
	ExtensionMatchScore   float64 `yaml:"extension_match_score"`     // default: 60
	DirectoryBonus        float64 `yaml:"directory_bonus"`           // default: 2
	// MultipleOccurrenceBonus rewards names containing a term more than once, with diminishing returns.
	MultipleOccurrenceBonus float64 `yaml:"multiple_occurrence_bonus"` // default: 10

	// Path scoring values
	PathExactMatchScore   float64 `yaml:"path_exact_match_score"`   // default: 40
	PathPartialMatchScore float64 `yaml:"path_partial_match_score"` // default: 30
	PathComponentBonus    float64 `yaml:"path_component_bonus"`     // default: 10

	// Recency multiplier settings
	RecencyEnabled         bool    `yaml:"recency_enabled"`          // default: true
	Recency24hMultiplier   float64 `yaml:"recency_24h_multiplier"`   // default: 1.2
	RecencyWeekMultiplier  float64 `yaml:"recency_week_multiplier"`  // default: 1.1
	RecencyMonthMultiplier float64 `yaml:"recency_month_multiplier"` // default: 1.05
}

// DefaultRankingConfig returns the default score values.
func DefaultRankingConfig() *RankingConfig {
	return &RankingConfig{
		ExactFilenameScore:      100,
		AllWordsInOrderScore:    90,
		AllWordsAnyOrderScore:   80,
		SubstringMatchScore:     60,
		PrefixMatchBonus:        5,
		ExtensionMatchScore:     60,
		DirectoryBonus:          2,
		MultipleOccurrenceBonus: 10,
		PathWeight:              0.3,
		PathExactMatchScore:     40,
		PathPartialMatchScore:   30,
		PathComponentBonus:      10,
		RecencyEnabled:          true,
		Recency24hMultiplier:    1.2,
		RecencyWeekMultiplier:   1.1,
		RecencyMonthMultiplier:  1.05,
	}
}
