package ranking

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hyperjump/seek/internal/models"
)

func TestPathScorer_Score(t *testing.T) {
	config := DefaultRankingConfig()
	scorer := NewPathScorer(config)

	tests := []struct {
		name    string
		terms   []string
		path    string
		wantMin float64
		wantMax float64
	}{
		{
			name:    "exact component",
			terms:   []string{"photos"},
			path:    "/holiday/photos/sunset.jpg",
			wantMin: config.PathExactMatchScore,
			wantMax: config.PathExactMatchScore,
		},
		{
			name:    "prefix of component",
			terms:   []string{"photo"},
			path:    "/holiday/photographs/sunset.jpg",
			wantMin: config.PathPartialMatchScore * 1.2,
			wantMax: config.PathExactMatchScore,
		},
		{
			name:    "substring of component",
			terms:   []string{"day"},
			path:    "/holiday/sunset.jpg",
			wantMin: config.PathPartialMatchScore,
			wantMax: config.PathExactMatchScore,
		},
		{
			name:    "several components",
			terms:   []string{"holiday", "photos"},
			path:    "/holiday/photos/sunset.jpg",
			wantMin: 2*config.PathExactMatchScore + config.PathComponentBonus,
			wantMax: 2*config.PathExactMatchScore + config.PathComponentBonus,
		},
		{
			name:    "case insensitive",
			terms:   []string{"PHOTOS"},
			path:    "/Holiday/Photos/sunset.jpg",
			wantMin: config.PathExactMatchScore,
			wantMax: config.PathExactMatchScore,
		},
		{
			name:    "glob component",
			terms:   []string{"photo*"},
			path:    "/holiday/photos/sunset.jpg",
			wantMin: config.PathPartialMatchScore,
			wantMax: config.PathPartialMatchScore,
		},
		{
			name:    "own name is not scored",
			terms:   []string{"sunset"},
			path:    "/holiday/photos/sunset.jpg",
			wantMin: 0,
			wantMax: 0,
		},
		{
			name:    "no match",
			terms:   []string{"zebra"},
			path:    "/holiday/photos/sunset.jpg",
			wantMin: 0,
			wantMax: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := &models.FileSystemObject{Path: tt.path, Kind: models.KindFile}
			score := scorer.Score(models.NewQuery(tt.terms, false), obj)
			if score < tt.wantMin || score > tt.wantMax {
				t.Errorf("Score() = %v, want between %v and %v", score, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestPathScorer_NilAndEmpty(t *testing.T) {
	scorer := NewPathScorer(nil)
	if got := scorer.Score(models.NewQuery([]string{"abc"}, false), nil); got != 0 {
		t.Errorf("Score(nil) = %v, want 0", got)
	}
	obj := &models.FileSystemObject{Path: "/abc/def.txt"}
	if got := scorer.Score(models.Query{}, obj); got != 0 {
		t.Errorf("Score(empty query) = %v, want 0", got)
	}
}

func TestExtractPathComponents(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/holiday/photos/sunset.jpg", []string{"holiday", "photos"}},
		{"holiday/photos/", []string{"holiday"}},
		{"/sunset.jpg", nil},
		{"sunset.jpg", nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, ExtractPathComponents(tt.path)); diff != "" {
			t.Errorf("ExtractPathComponents(%q) mismatch (-want +got):\n%s", tt.path, diff)
		}
	}
}
