package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEmptyContentReturnsDefaults(t *testing.T) {
	cfg, warnings, err := Parse("   \n\t", Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, Default(), cfg)
}

func TestParseRejectsNonObjectContent(t *testing.T) {
	_, _, err := Parse("segment.duration_ms = 5000", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "JSONC object")
}

func TestParseLayersOverridesOnBase(t *testing.T) {
	cfg, _, err := Parse(`{
  // keep the rest of the defaults
  "generate": {"max_tokens": 80}
}`, Default())
	require.NoError(t, err)
	require.Equal(t, 80, cfg.Generate.MaxTokens)
	require.Equal(t, Default().Generate.Model, cfg.Generate.Model)
	require.Equal(t, Default().Segment.DurationMS, cfg.Segment.DurationMS)
}

func TestParseValidatesResult(t *testing.T) {
	_, _, err := Parse(`{"generate":{"max_tokens": 0}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "generate.max_tokens")
}
