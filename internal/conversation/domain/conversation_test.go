package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Jane@Example.COM ", "jane@example.com"},
		{"bob@example.com", "bob@example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeAddress(tt.in))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 100))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "héé...", Truncate("héééé", 3))
}

func TestClampSummary(t *testing.T) {
	long := strings.Repeat("a", 250)
	got := ClampSummary(long)
	assert.Len(t, []rune(got), MaxSummaryLength)
	assert.True(t, strings.HasSuffix(got, "..."))

	assert.Equal(t, "fine", ClampSummary("  fine "))
}
