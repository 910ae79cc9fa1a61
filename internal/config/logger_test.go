package config

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		assert.NoError(t, validateLevel(level))
	}
	assert.Error(t, validateLevel("trace"))
}

func TestParseLogLevelExplicit(t *testing.T) {
	level, err := parseLogLevel("warn", false)
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, level)
}

func TestParseLogLevelEmptyFallsBackToDevelopment(t *testing.T) {
	level, err := parseLogLevel("", true)
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, level)

	level, err = parseLogLevel("", false)
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, level)
}

func TestParseLogLevelUnknown(t *testing.T) {
	_, err := parseLogLevel("verbose", false)
	assert.Error(t, err)
}
