package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("INPUT_BUCKET", "raw-events")
	t.Setenv("OUTPUT_BUCKET", "event-summaries")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "raw-events", cfg.InputBucket)
	assert.Equal(t, "event-summaries", cfg.OutputBucket)
	assert.Equal(t, "events/", cfg.InputPrefix)
	assert.Equal(t, 24, cfg.LookbackHours)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("INPUT_BUCKET", "raw-events")
	t.Setenv("OUTPUT_BUCKET", "event-summaries")
	t.Setenv("INPUT_PREFIX", "incoming/")
	t.Setenv("LOOKBACK_HOURS", "6")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "incoming/", cfg.InputPrefix)
	assert.Equal(t, 6, cfg.LookbackHours)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("INPUT_BUCKET", "")
	t.Setenv("OUTPUT_BUCKET", "event-summaries")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INPUT_BUCKET")
}

func TestLoad_BadLookback(t *testing.T) {
	t.Setenv("INPUT_BUCKET", "raw-events")
	t.Setenv("OUTPUT_BUCKET", "event-summaries")
	t.Setenv("LOOKBACK_HOURS", "soon")

	_, err := Load()
	require.Error(t, err)
}
