package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "codescout.log")

	logger, cleanup, err := Setup(Config{
		Level:    "debug",
		FilePath: logPath,
	})
	require.NoError(t, err)

	logger.Info("index complete", slog.Int("files", 3))
	cleanup()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"index complete"`)
	assert.Contains(t, string(data), `"files":3`)
}

func TestSetupLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "codescout.log")

	logger, cleanup, err := Setup(Config{
		Level:    "warn",
		FilePath: logPath,
	})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Warn("visible")
	cleanup()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "visible")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestRotatingWriterRotates(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "codescout.log")

	w, err := NewRotatingWriter(logPath, 1, 2)
	require.NoError(t, err)
	defer w.Close()

	// Force the threshold low so a second write triggers rotation.
	w.maxSize = 64

	line := strings.Repeat("a", 48) + "\n"
	_, err = w.Write([]byte(line))
	require.NoError(t, err)
	_, err = w.Write([]byte(line))
	require.NoError(t, err)

	_, err = os.Stat(logPath + ".1")
	assert.NoError(t, err, "rotated file should exist")

	info, err := os.Stat(logPath)
	require.NoError(t, err)
	assert.Equal(t, int64(len(line)), info.Size())
}

func TestRotatingWriterCreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nested", "deeper", "codescout.log")

	w, err := NewRotatingWriter(logPath, 10, 3)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("hello\n"))
	require.NoError(t, err)
}
