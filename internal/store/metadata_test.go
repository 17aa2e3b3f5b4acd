package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ms := NewMetadataStore(dir)

	meta := NewProjectMetadata("/src/proj", "test-model")
	meta.EmbeddingDimension = 768
	meta.TotalFiles = 2
	meta.TotalChunks = 9
	meta.Files["a.go"] = FileMeta{Hash: "abc", ChunkCount: 5, Language: "go"}
	meta.Files["b.py"] = FileMeta{Hash: "def", ChunkCount: 4, Language: "python"}

	require.NoError(t, ms.Save(meta))

	loaded, err := ms.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, "/src/proj", loaded.ProjectPath)
	assert.Equal(t, "test-model", loaded.EmbeddingModel)
	assert.Equal(t, 768, loaded.EmbeddingDimension)
	assert.Equal(t, 9, loaded.TotalChunks)
	assert.Equal(t, FileMeta{Hash: "abc", ChunkCount: 5, Language: "go"}, loaded.Files["a.go"])
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestMetadataMissingFileIsAbsent(t *testing.T) {
	ms := NewMetadataStore(t.TempDir())

	meta, err := ms.Load()
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestMetadataCorruptFileIsAbsent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFileName), []byte("{not json"), 0o644))

	ms := NewMetadataStore(dir)
	meta, err := ms.Load()
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestMetadataSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	ms := NewMetadataStore(dir)

	require.NoError(t, ms.Save(NewProjectMetadata("/p", "m")))

	// No temp file left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, MetadataFileName, entries[0].Name())
}

func TestMetadataDelete(t *testing.T) {
	dir := t.TempDir()
	ms := NewMetadataStore(dir)

	require.NoError(t, ms.Save(NewProjectMetadata("/p", "m")))
	require.NoError(t, ms.Delete())
	require.NoError(t, ms.Delete()) // idempotent

	meta, err := ms.Load()
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestChunkIDIsPureFunction(t *testing.T) {
	base := ChunkID("a/b.go", 10, 20, "hash1")

	// Reproducible.
	assert.Equal(t, base, ChunkID("a/b.go", 10, 20, "hash1"))
	assert.Len(t, base, 16)

	// Changing any one input changes the ID.
	assert.NotEqual(t, base, ChunkID("a/c.go", 10, 20, "hash1"))
	assert.NotEqual(t, base, ChunkID("a/b.go", 11, 20, "hash1"))
	assert.NotEqual(t, base, ChunkID("a/b.go", 10, 21, "hash1"))
	assert.NotEqual(t, base, ChunkID("a/b.go", 10, 20, "hash2"))
}

func TestProjectDirIsStableAndSafe(t *testing.T) {
	a := ProjectDir("/data", "/home/user/proj")
	b := ProjectDir("/data", "/home/user/proj")
	c := ProjectDir("/data", "/home/user/other")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	// Trailing separators do not change identity.
	assert.Equal(t, a, ProjectDir("/data", "/home/user/proj/"))
	assert.NotContains(t, filepath.Base(a), "/")
	assert.Len(t, filepath.Base(a), 16)
}
