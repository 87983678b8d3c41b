package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/internal/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LOG_LEVEL", "error")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestParseCmd(t *testing.T) {
	out, err := execute(t, "parse", "add", "a", "window", "on", "the", "left")
	require.NoError(t, err)

	var got struct {
		Matched bool        `json:"matched"`
		Intent  core.Intent `json:"intent"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Matched)
	assert.Equal(t, core.CommandAddWindow, got.Intent.Command)
}

func TestParseCmd_NoMatch(t *testing.T) {
	out, err := execute(t, "parse", "hello", "there")
	require.NoError(t, err)
	assert.JSONEq(t, `{"matched":false}`, out)
}

func TestAnalyzeCmd(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testutil.LivingRoom()))
	path := filepath.Join(t.TempDir(), "room.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	out, err := execute(t, "analyze", path)
	require.NoError(t, err)

	var got core.RoomAnalysis
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.False(t, got.Fallback)
	assert.NotEmpty(t, got.Elements)
}

func TestAnalyzeCmd_MissingFile(t *testing.T) {
	_, err := execute(t, "analyze", filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
}

func TestAskCmd_RequiresProvider(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	_, err := execute(t, "ask", "is", "this", "wall", "load", "bearing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_KEY")
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")
	_, err := execute(t, "parse", "help")
	require.Error(t, err)
}
