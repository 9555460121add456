package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bardavid-law/intake-cli/pkg/vision"
)

func TestCalculator_Vision(t *testing.T) {
	c := NewCalculator(Rates{
		Anthropic: map[string]ModelRate{
			"test-model": {Input: 3.00, Output: 15.00},
		},
	})

	got := c.Vision("test-model", vision.TokenUsage{InputTokens: 1_000_000, OutputTokens: 100_000})
	assert.InDelta(t, 3.00+1.50, got, 1e-9)
}

func TestCalculator_Vision_UnknownModelIsFree(t *testing.T) {
	c := NewCalculator(DefaultRates())
	assert.Zero(t, c.Vision("mystery-model", vision.TokenUsage{InputTokens: 1_000_000}))
}

func TestCalculator_Vision_ZeroUsage(t *testing.T) {
	c := NewCalculator(DefaultRates())
	assert.Zero(t, c.Vision("claude-sonnet-4-5-20250929", vision.TokenUsage{}))
}

func TestDefaultRates_CoverKnownModels(t *testing.T) {
	rates := DefaultRates()
	assert.Contains(t, rates.Anthropic, "claude-sonnet-4-5-20250929")
	assert.Contains(t, rates.Anthropic, "claude-haiku-4-5-20251001")
}
