package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thvl3/stegolab/pkg/config"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Str("file", "a.png").Msg("detector failed")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "a.png", entry["file"])
	assert.Equal(t, "detector failed", entry["message"])
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(config.LogConfig{Format: "console"}, &buf)
	require.NoError(t, err)

	logger.Info().Msg("analyzing")
	assert.Contains(t, buf.String(), "analyzing")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestNewWithWriter_BadLevel(t *testing.T) {
	_, err := NewWithWriter(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}
