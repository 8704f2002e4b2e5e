package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNewSource tests default construction
func TestNewSource(t *testing.T) {
	s := NewSource("DailySourceReviews")
	assert.Equal(t, "DailySourceReviews", s.Name)
	assert.False(t, s.SkipCutoff)
	assert.Empty(t, s.Prompt)
}

// TestNewSource_SkipCutoffDefaults tests the built-in cutoff exemptions
func TestNewSource_SkipCutoffDefaults(t *testing.T) {
	s := NewSource("GoogleTrendsHistorical")
	assert.True(t, s.SkipCutoff, "trend history has no event times and must bypass the cutoff")

	other := NewSource("NewsHeadlines")
	assert.False(t, other.SkipCutoff)
}
