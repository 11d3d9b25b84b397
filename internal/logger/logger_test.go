package logger_test

import (
	"bytes"
	"io"
	"testing"

	"codeberg.org/mutker/wvasim/internal/errors"
	"codeberg.org/mutker/wvasim/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logger.DebugLevel, logger.ParseLevel("debug"))
	assert.Equal(t, logger.InfoLevel, logger.ParseLevel("info"))
	assert.Equal(t, logger.WarnLevel, logger.ParseLevel("warning"))
	assert.Equal(t, logger.WarnLevel, logger.ParseLevel("WARN"))
	assert.Equal(t, logger.ErrorLevel, logger.ParseLevel("error"))
	assert.Equal(t, logger.InfoLevel, logger.ParseLevel("nonsense"))
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "debug", true)
	t.Cleanup(func() { logger.InitWithWriter(io.Discard, "info", true) })

	log := logger.Default().With("stream")
	log.Info().Str("session", "abc").Msg("session started")

	out := buf.String()
	assert.Contains(t, out, "session started")
	assert.Contains(t, out, "component=stream")
	assert.Contains(t, out, "session=abc")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "warning", true)
	t.Cleanup(func() { logger.InitWithWriter(io.Discard, "info", true) })

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "debug", true)
	t.Cleanup(func() { logger.InitWithWriter(io.Discard, "info", true) })

	err := errors.New().Wrap(errors.ErrServe, io.ErrUnexpectedEOF)
	logger.ErrorWithCode(err).Msg("server failed")

	assert.Contains(t, buf.String(), "error_code=serve_failed")
}
