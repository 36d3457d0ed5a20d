package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToInfoOnBadLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("not-a-level", false, &buf)

	log.Debug().Msg("dropped")
	log.Info().Msg("kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
}

func TestStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("debug", false, &buf)

	log.Info().
		Str("service", "dynamodb").
		Int("status", 200).
		Int64("attempt", 2).
		Dur("elapsed", 150*time.Millisecond).
		Msg("request complete")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "dynamodb", entry["service"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.Equal(t, "request complete", entry["message"])
}

func TestErrField(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("debug", false, &buf)

	log.Error().Err(errors.New("connection refused")).Msg("send failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "connection refused", entry["error"])
	assert.Equal(t, "error", entry["level"])
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("debug", false, &buf)

	child := log.WithFields(map[string]any{"region": "us-east-1"})
	child.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "us-east-1", entry["region"])
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	// Must not panic and must not write anywhere.
	log.Info().Str("k", "v").Msg("discarded")
	log.Warn().Msgf("discarded %d", 1)
}
