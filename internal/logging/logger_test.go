package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "warn", LevelWarn.String())
	assert.Equal(t, "unknown", Level(42).String())
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatText, ParseFormat("yaml"))
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	return entry
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "debug", Format: "json"}, &buf)

	l.Info("object created", "ref", "1:7", "count", 42, "err", errors.New("boom"))

	entry := decode(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "object created", entry["msg"])
	assert.Equal(t, "1:7", entry["ref"])
	assert.Equal(t, float64(42), entry["count"])
	assert.Equal(t, "boom", entry["err"])
	assert.Contains(t, entry, "ts")
}

func TestLoggerText(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "debug", Format: "text"}, &buf)

	l.Warn("conflict", "value", "alice")

	out := buf.String()
	assert.Contains(t, out, "level=warning")
	assert.Contains(t, out, "msg=conflict")
	assert.Contains(t, out, "value=alice")
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "warn", Format: "text"}, &buf)

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestLoggerWithTx(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "debug", Format: "json"}, &buf)

	l.WithTx("tx-123").Info("commit")

	assert.Equal(t, "tx-123", decode(t, &buf)["tx"])
}

func TestLoggerChildIsolation(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "debug", Format: "json"}, &buf)

	child := l.WithFields("session", "alice", "privileged", true, "dangling")

	l.Info("parent")
	assert.NotContains(t, decode(t, &buf), "session")

	buf.Reset()
	child.Info("child")
	entry := decode(t, &buf)
	assert.Equal(t, "alice", entry["session"])
	assert.Equal(t, true, entry["privileged"])
	assert.NotContains(t, entry, "dangling")
}

func TestLoggerAllLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "debug", Format: "json"}, &buf)

	tests := []struct {
		logFunc func(string, ...interface{})
		level   string
	}{
		{l.Debug, "debug"},
		{l.Info, "info"},
		{l.Warn, "warning"},
		{l.Error, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf.Reset()
			tt.logFunc("message")
			assert.Equal(t, tt.level, decode(t, &buf)["level"])
		})
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.log")
	l := New(Config{Level: "info", Format: "text", Output: path})
	l.Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "msg=hello"))
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.Info("x")
		l.Warn("x")
		l.Error("x")
		l.WithTx("t").WithFields("k", "v").Info("x")
	})
	assert.NotNil(t, NewDefault())
}

func TestNewTxID(t *testing.T) {
	a, b := NewTxID(), NewTxID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
