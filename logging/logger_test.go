package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStructuredLogger_JSONAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf}).
		WithComponent("gateway").
		WithRole("design").
		WithContext("request", "r-1")

	l.Info("gateway.invoke.start", "provider", "anthropic")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "gateway.invoke.start", entry["msg"])
	assert.Equal(t, "gateway", entry["component"])
	assert.Equal(t, "design", entry["agent_role"])
	assert.Equal(t, "r-1", entry["request"])
	assert.Equal(t, "anthropic", entry["provider"])
}

func TestStructuredLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Output: &buf})
	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())
	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestStructuredLogger_DomainHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "text", Output: &buf})
	l.LogModelCall("structural", "openai", "gpt-4o", 120, time.Second, false, errors.New("boom"))
	l.LogAnalysis(4, 0.8, time.Millisecond, false)
	l.LogCollaboration("structural", []string{"coordinator"}, time.Second, true)

	out := buf.String()
	assert.Contains(t, out, "model call failed")
	assert.Contains(t, out, "error=boom")
	assert.Contains(t, out, "room analysis completed")
	assert.Contains(t, out, "collaboration completed")
}

func TestWithContext_DoesNotLeak(t *testing.T) {
	base := NewLogger(&LoggerConfig{Output: &bytes.Buffer{}})
	_ = base.WithContext("k", "v")
	assert.Empty(t, base.context)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel(" error "))
	assert.Equal(t, LogLevelInfo, ParseLevel("verbose"))
	assert.True(t, strings.EqualFold(LogLevelWarn.String(), "warn"))
}

func TestZapAdapter(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	z := NewZapAdapter(zap.New(obs))

	z.Info("vision.analyze.done", "elements", 3)
	z.Warn("gateway.fallback", "role", "design")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "vision.analyze.done", entries[0].Message)
	assert.Equal(t, int64(3), entries[0].ContextMap()["elements"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, NoOpLogger{}, OrNoOp(nil))
	l := NewDefaultSlogLogger()
	assert.Same(t, l, OrNoOp(l))
}

func TestNewStructuredLogger_WrapsZap(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	l := NewStructuredLogger(NewZapAdapter(zap.New(obs))).WithComponent("gateway").WithRole("structural")

	l.LogModelCall("structural", "anthropic", "claude", 10, time.Millisecond, true, nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "gateway", fields["component"])
	assert.Equal(t, "structural", fields["agent_role"])
	assert.Equal(t, "anthropic", fields["provider"])
	assert.Same(t, l, NewStructuredLogger(l))
}

func TestStructuredLogger_StartTimer(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf}).WithComponent("archmesh")

	done := l.StartTimer("archmesh.mirror.sync")
	assert.Zero(t, buf.Len())
	done()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "operation completed", entry["msg"])
	assert.Equal(t, "archmesh.mirror.sync", entry["operation"])
	assert.Contains(t, entry, "duration")
}
