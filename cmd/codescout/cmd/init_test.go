package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescout-dev/codescout/internal/config"
)

func runInitCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newInitCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestInitWritesLoadableConfig(t *testing.T) {
	dir := t.TempDir()

	out, err := runInitCmd(t, dir)
	require.NoError(t, err)
	assert.Contains(t, out, ".codescout.yaml")

	// The template must round-trip through the config loader.
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
	assert.Equal(t, 32, cfg.Embeddings.BatchSize)
	assert.Equal(t, 50, cfg.Chunking.MinChunkSize)
}

func TestInitRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, ".codescout.yaml")
	require.NoError(t, os.WriteFile(target, []byte("version: 1\n"), 0o644))

	_, err := runInitCmd(t, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = runInitCmd(t, dir, "--force")
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "embeddings:")
}
