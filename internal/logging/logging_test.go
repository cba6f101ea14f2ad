package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
	require.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "json")
	log.Debug("hidden")
	log.Info("turn finished", "turn_id", "t1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "turn finished", rec["msg"])
	require.Equal(t, "t1", rec["turn_id"])
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	log, closer, err := OpenFile(dir, "mango.log", "debug", "text")
	require.NoError(t, err)
	log.Debug("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, "mango.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), "msg=hello")
}

func TestOrDiscard(t *testing.T) {
	require.NotNil(t, OrDiscard(nil))
	l := Discard()
	require.Same(t, l, OrDiscard(l))
}

func TestNewDynamic(t *testing.T) {
	var buf bytes.Buffer
	var lv slog.LevelVar
	lv.Set(slog.LevelWarn)
	log := NewDynamic(&buf, &lv, "text")

	log.Info("quiet")
	require.Empty(t, buf.String())

	lv.Set(slog.LevelDebug)
	log.Debug("loud")
	require.Contains(t, buf.String(), "msg=loud")
}
