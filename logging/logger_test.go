package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"debug":   LogLevelDebug,
		"INFO":    LogLevelInfo,
		"":        LogLevelInfo,
		"warning": LogLevelWarn,
		" error ": LogLevelError,
	} {
		got, err := ParseLevel(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewSlogLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newSlogLogger(&buf, LogLevelWarn, "json", false)

	l.Info("hidden")
	l.Warn("shown", "k", "v")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "v", rec["k"])
}

func TestScoped_AddsComponent(t *testing.T) {
	var buf bytes.Buffer
	base := newSlogLogger(&buf, LogLevelDebug, "json", false)

	l := With(Scoped(base, "ActionRunner"), "artifact_id", "a1")
	l.Debug("Created folder", "path", "src")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "ActionRunner", rec["component"])
	assert.Equal(t, "a1", rec["artifact_id"])
	assert.Equal(t, "src", rec["path"])
}

func TestScoped_NilBase(t *testing.T) {
	l := Scoped(nil, "x")
	assert.NotPanics(t, func() { l.Error("boom") })
}

func TestZapAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Scoped(NewZapAdapter(zap.New(core)), "Workbench")

	l.Warn("Artifact title missing", "message_id", "m1")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Artifact title missing", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "Workbench", fields["component"])
	assert.Equal(t, "m1", fields["message_id"])
}
