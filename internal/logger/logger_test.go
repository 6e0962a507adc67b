package logger

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_DefaultLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New("not-a-level", &buf)

	log.Info().Msg("visible at warn? no")
	assert.Empty(t, buf.String())

	log.Warn().Msg("warned")
	assert.Contains(t, buf.String(), "warned")
}

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", &buf)

	log.Debug().Msg("dbg")
	log.Info().Msg("inf")
	log.Warn().Msg("wrn")
	log.Error().Msg("err")

	out := buf.String()
	assert.Contains(t, out, "dbg")
	assert.Contains(t, out, "inf")
	assert.Contains(t, out, "wrn")
	assert.Contains(t, out, "err")
}

func TestFields(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", &buf)

	log.Info().
		Str("path", "/tmp/x").
		Int("count", 3).
		Int64("big", 9000).
		Uint64("id", 7).
		Bool("ok", true).
		Dur("took", 1500*time.Microsecond).
		Msg("scanned")

	out := buf.String()
	assert.Contains(t, out, "scanned")
	assert.Contains(t, out, "path")
	assert.Contains(t, out, "/tmp/x")
	assert.Contains(t, out, "count")
	assert.Contains(t, out, "took")
}

func TestErrField(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", &buf)

	log.Error().Err(errors.New("boom")).Msg("failed")
	assert.Contains(t, buf.String(), "boom")

	// Nil errors add nothing.
	buf.Reset()
	log.Info().Err(nil).Msg("fine")
	assert.NotContains(t, buf.String(), "error")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New("error", &buf)

	log.Debug().Msg("hidden")
	log.Info().Msg("hidden")
	log.Warn().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Error().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
