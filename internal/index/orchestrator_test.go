package index

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescout-dev/codescout/internal/config"
	"github.com/codescout-dev/codescout/internal/embed"
	"github.com/codescout-dev/codescout/internal/store"
	"github.com/codescout-dev/codescout/internal/xerrors"
)

// stubEmbedder produces deterministic vectors from text hashes.
type stubEmbedder struct {
	model    string
	queryErr error
}

var _ embed.Embedder = (*stubEmbedder)(nil)

func (s *stubEmbedder) EmbedAll(_ context.Context, texts []string, mode embed.Mode) ([][]float32, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("mode is required")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		sum := sha256.Sum256([]byte(text))
		vec := make([]float32, 4)
		for j := range vec {
			vec[j] = float32(sum[j])/255 + 0.01
		}
		out[i] = vec
	}
	return out, nil
}

func (s *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	vectors, err := s.EmbedAll(ctx, []string{text}, embed.ModeQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *stubEmbedder) Dimensions() int   { return 4 }
func (s *stubEmbedder) ModelName() string { return s.model }
func (s *stubEmbedder) Close() error      { return nil }

func newTestOrchestrator(t *testing.T) (*Orchestrator, *stubEmbedder) {
	t.Helper()
	cfg := config.New()
	cfg.DataRoot = t.TempDir()

	emb := &stubEmbedder{model: "stub-model"}
	o := New(cfg, emb)
	t.Cleanup(o.Close)
	return o, emb
}

func writeProjectFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const goFile = `package main

import "fmt"

// Run prints a short status banner and returns the number of bytes
// written so the caller can assert that output was produced.
func Run(name string) int {
	n, _ := fmt.Printf("service %s starting up\n", name)
	return n
}
`

const pyFile = `import json


def load_settings(path):
    """Load a JSON settings file and return the parsed dictionary."""
    with open(path) as handle:
        return json.load(handle)
`

func seedProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeProjectFile(t, root, "main.go", goFile)
	writeProjectFile(t, root, "tools/settings.py", pyFile)
	return root
}

func TestIndexFreshProject(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	root := seedProject(t)

	result := o.Index(context.Background(), root, Options{})
	require.NoError(t, result.Err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.FilesScanned)
	assert.Equal(t, 2, result.FilesIndexed)
	assert.Zero(t, result.FilesSkipped)
	assert.Greater(t, result.TotalChunks, 0)

	results := o.Search(context.Background(), root, "print a status banner", SearchOptions{Limit: 5})
	assert.NotEmpty(t, results)
}

func TestIndexIsIdempotent(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	root := seedProject(t)
	ctx := context.Background()

	first := o.Index(ctx, root, Options{})
	require.True(t, first.Success)

	second := o.Index(ctx, root, Options{})
	require.True(t, second.Success)
	assert.Zero(t, second.FilesIndexed)
	assert.Equal(t, 2, second.FilesSkipped)
	assert.Equal(t, first.TotalChunks, second.TotalChunks)
}

func TestIndexDetectsEditedFile(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	root := seedProject(t)
	ctx := context.Background()

	require.True(t, o.Index(ctx, root, Options{}).Success)

	writeProjectFile(t, root, "tools/settings.py", pyFile+"\n\ndef extra():\n    return 42\n")

	result := o.Index(ctx, root, Options{})
	require.True(t, result.Success)
	assert.Equal(t, 1, result.FilesIndexed)
	assert.Equal(t, 1, result.FilesSkipped)
}

func TestIndexEmptiedFileDropsStaleChunks(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	root := seedProject(t)
	ctx := context.Background()

	first := o.Index(ctx, root, Options{})
	require.True(t, first.Success)

	// Truncate to whitespace: the file still scans and hashes, but
	// chunking yields nothing. Its old rows must not survive.
	writeProjectFile(t, root, "tools/settings.py", "\n\n")

	second := o.Index(ctx, root, Options{})
	require.True(t, second.Success)
	assert.Equal(t, 1, second.FilesIndexed)

	for _, r := range o.Search(ctx, root, "load settings json", SearchOptions{Limit: 20}) {
		assert.NotEqual(t, "tools/settings.py", r.Chunk.FilePath)
	}

	// Metadata chunk totals agree with the rows actually stored.
	absRoot, err := filepath.Abs(root)
	require.NoError(t, err)
	vs := store.NewVectorStore(store.ProjectDir(o.cfg.DataRoot, absRoot))
	require.NoError(t, vs.Connect(ctx))
	defer func() { _ = vs.Close() }()
	rows, err := vs.CountRows(ctx)
	require.NoError(t, err)

	stats, err := o.Stats(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, stats.Chunks, rows)

	// A third run sees no change and stays clean.
	third := o.Index(ctx, root, Options{})
	require.True(t, third.Success)
	assert.Zero(t, third.FilesIndexed)
	for _, r := range o.Search(ctx, root, "load settings json", SearchOptions{Limit: 20}) {
		assert.NotEqual(t, "tools/settings.py", r.Chunk.FilePath)
	}
}

func TestIndexRemovesDeletedFiles(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	root := seedProject(t)
	ctx := context.Background()

	require.True(t, o.Index(ctx, root, Options{}).Success)
	require.NoError(t, os.Remove(filepath.Join(root, "tools", "settings.py")))

	result := o.Index(ctx, root, Options{})
	require.True(t, result.Success)
	assert.Equal(t, 1, result.FilesRemoved)

	// The removed file's chunks are gone from the search surface.
	for _, r := range o.Search(ctx, root, "load settings json", SearchOptions{Limit: 20}) {
		assert.NotEqual(t, "tools/settings.py", r.Chunk.FilePath)
	}

	stats, err := o.Stats(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
}

func TestIndexModelChangeForcesRebuild(t *testing.T) {
	o, emb := newTestOrchestrator(t)
	root := seedProject(t)
	ctx := context.Background()

	require.True(t, o.Index(ctx, root, Options{}).Success)

	emb.model = "different-model"
	result := o.Index(ctx, root, Options{})
	require.True(t, result.Success)
	assert.Equal(t, 2, result.FilesIndexed, "model change re-indexes everything")

	stats, err := o.Stats(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, "different-model", stats.Model)
}

func TestIndexForceRebuild(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	root := seedProject(t)
	ctx := context.Background()

	require.True(t, o.Index(ctx, root, Options{}).Success)

	result := o.Index(ctx, root, Options{Force: true})
	require.True(t, result.Success)
	assert.Equal(t, 2, result.FilesIndexed)
}

func TestIndexLockExclusion(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	root := seedProject(t)

	absRoot, err := filepath.Abs(root)
	require.NoError(t, err)

	// Hold the project lock the way a concurrent run would.
	lock := newProjectLock(store.ProjectDir(o.cfg.DataRoot, absRoot))
	acquired, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	defer lock.Unlock()

	result := o.Index(context.Background(), root, Options{})
	assert.False(t, result.Success)
	require.Error(t, result.Err)
	assert.Equal(t, xerrors.KindLock, xerrors.KindOf(result.Err))
}

func TestIndexNeverPanicsOnMissingProject(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	result := o.Index(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{})
	assert.False(t, result.Success)
	assert.Error(t, result.Err)
}

func TestSearchWithoutIndexReturnsEmpty(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	results := o.Search(context.Background(), t.TempDir(), "anything", SearchOptions{})
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearchEmbeddingFailureReturnsEmpty(t *testing.T) {
	o, emb := newTestOrchestrator(t)
	root := seedProject(t)
	ctx := context.Background()

	require.True(t, o.Index(ctx, root, Options{}).Success)

	emb.queryErr = fmt.Errorf("embedding service down")
	results := o.Search(ctx, root, "anything", SearchOptions{Limit: 5})
	assert.Empty(t, results)
}

func TestSearchFilters(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	root := seedProject(t)
	ctx := context.Background()

	require.True(t, o.Index(ctx, root, Options{}).Success)

	for _, r := range o.Search(ctx, root, "function", SearchOptions{Limit: 20, Language: "python"}) {
		assert.Equal(t, "python", r.Chunk.Language)
	}
	for _, r := range o.Search(ctx, root, "function", SearchOptions{Limit: 20, FilePattern: "tools/"}) {
		assert.Contains(t, r.Chunk.FilePath, "tools/")
	}
}

func TestProgressPhases(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	root := seedProject(t)

	var phases []Phase
	o.SetProgress(func(p Progress) {
		if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
			phases = append(phases, p.Phase)
		}
	})

	require.True(t, o.Index(context.Background(), root, Options{}).Success)

	assert.Equal(t, []Phase{
		PhaseInitializing, PhaseScanning, PhaseHashing,
		PhaseParsing, PhaseEmbedding, PhaseStoring, PhaseDone,
	}, phases)
}

func TestProgressNamesCurrentFile(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	root := seedProject(t)

	var parsed []string
	o.SetProgress(func(p Progress) {
		if p.Phase == PhaseParsing && p.CurrentFile != "" {
			parsed = append(parsed, p.CurrentFile)
		}
	})

	require.True(t, o.Index(context.Background(), root, Options{}).Success)

	assert.ElementsMatch(t, []string{"main.go", "tools/settings.py"}, parsed)
}

func TestStatsAndDeleteIndex(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	root := seedProject(t)
	ctx := context.Background()

	stats, err := o.Stats(ctx, root)
	require.NoError(t, err)
	assert.Zero(t, stats.Files)

	require.True(t, o.Index(ctx, root, Options{}).Success)

	stats, err = o.Stats(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Greater(t, stats.Chunks, 0)
	assert.Greater(t, stats.SizeOnDisk, int64(0))
	assert.Equal(t, "stub-model", stats.Model)
	assert.False(t, stats.UpdatedAt.IsZero())

	require.NoError(t, o.DeleteIndex(ctx, root))
	assert.Empty(t, o.Search(ctx, root, "anything", SearchOptions{}))
}
