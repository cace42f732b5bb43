package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureGlobal(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)
	return &buf
}

func TestWithContextCarriesRunID(t *testing.T) {
	buf := captureGlobal(t)

	ctx := ContextWithRunID(context.Background(), "run-42")
	l := WithContext(ctx, "aging")
	l.Info().Msg("engine started")

	assert.Contains(t, buf.String(), `"component":"aging"`)
	assert.Contains(t, buf.String(), `"run_id":"run-42"`)
}

func TestWithContextWithoutRunID(t *testing.T) {
	buf := captureGlobal(t)

	l := WithContext(context.Background(), "export")
	l.Info().Msg("done")

	assert.Contains(t, buf.String(), `"component":"export"`)
	assert.NotContains(t, buf.String(), "run_id")

	_, ok := RunID(ContextWithRunID(context.Background(), ""))
	assert.False(t, ok)
}

func TestPackageLevelHelpers(t *testing.T) {
	buf := captureGlobal(t)
	prevLevel := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prevLevel) })

	Info("starting")
	Debug("details")
	Warn("careful")
	Error(assert.AnError, "failed")

	out := buf.String()
	assert.Contains(t, out, `"level":"info","message":"starting"`)
	assert.Contains(t, out, `"level":"debug","message":"details"`)
	assert.Contains(t, out, `"level":"warn","message":"careful"`)
	assert.Contains(t, out, `"level":"error","error":"assert.AnError general error for testing","message":"failed"`)
}

func TestSetupTeesToRotatingFile(t *testing.T) {
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	prevFormat := zerolog.TimeFieldFormat
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
		zerolog.TimeFieldFormat = prevFormat
	})

	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Format = "json"
	cfg.Output = filepath.Join(dir, "console.log")
	cfg.File = filepath.Join(dir, "receivables.log")

	require.NoError(t, Setup(cfg))
	l := WithComponent("test")
	l.Info().Msg("hello")

	for _, path := range []string{cfg.Output, cfg.File} {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"message":"hello"`)
	}
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "loud"
	assert.Error(t, Setup(cfg))
}
