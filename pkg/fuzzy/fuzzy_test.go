package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"Lamp", "lamp", 0},
		{"café", "cafe", 0},
		{"blue lamp", "blue  lamp", 0},
		{"lamp", "lamps", 1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, LevenshteinDistance(tt.a, tt.b))
			assert.Equal(t, tt.want, LevenshteinDistance(tt.b, tt.a))
		})
	}
}

func TestRankByDistance(t *testing.T) {
	candidates := []string{"Blue Lamp Deluxe", "Blue Lamp", "Red Lamp", "Blue Lamp"}

	order := RankByDistance("blue lamp", candidates)

	assert.Equal(t, []int{1, 3, 2, 0}, order)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ao dai", Normalize("  Áo   Dài "))
}
