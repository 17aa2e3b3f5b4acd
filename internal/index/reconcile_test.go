package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescout-dev/codescout/internal/scanner"
	"github.com/codescout-dev/codescout/internal/store"
)

func hashedFixture(rel, hash string) hashedFile {
	return hashedFile{
		ScannedFile: scanner.ScannedFile{RelPath: rel, AbsPath: "/" + rel},
		Hash:        hash,
	}
}

func relPathsOf(files []hashedFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.RelPath)
	}
	return out
}

func TestReconcileFreshProject(t *testing.T) {
	files := []hashedFile{hashedFixture("a.ts", "h1"), hashedFixture("b.py", "h2")}

	p := reconcile(files, nil, "model", false)
	assert.False(t, p.fullRebuild)
	assert.Equal(t, []string{"a.ts", "b.py"}, relPathsOf(p.toIndex))
	assert.Empty(t, p.toSkip)
	assert.Empty(t, p.toDelete)
}

func TestReconcileIncrementalRun(t *testing.T) {
	// Run 1 indexed a.ts and b.py; only b.py has been edited since,
	// and c.go is gone.
	meta := store.NewProjectMetadata("/p", "model")
	meta.Files["a.ts"] = store.FileMeta{Hash: "h1"}
	meta.Files["b.py"] = store.FileMeta{Hash: "h2-old"}
	meta.Files["c.go"] = store.FileMeta{Hash: "h3"}

	files := []hashedFile{hashedFixture("a.ts", "h1"), hashedFixture("b.py", "h2-new")}

	p := reconcile(files, meta, "model", false)
	assert.False(t, p.fullRebuild)
	assert.Equal(t, []string{"b.py"}, relPathsOf(p.toIndex))
	assert.Equal(t, []string{"a.ts"}, p.toSkip)
	assert.Equal(t, []string{"c.go"}, p.toDelete)
}

func TestReconcileModelChangeMeansFullRebuild(t *testing.T) {
	meta := store.NewProjectMetadata("/p", "old-model")
	meta.Files["a.ts"] = store.FileMeta{Hash: "h1"}

	files := []hashedFile{hashedFixture("a.ts", "h1")}

	p := reconcile(files, meta, "new-model", false)
	assert.True(t, p.fullRebuild)
	assert.Equal(t, []string{"a.ts"}, relPathsOf(p.toIndex))
	assert.Empty(t, p.toDelete, "dropping the table covers removals")
}

func TestReconcileForceMeansFullRebuild(t *testing.T) {
	meta := store.NewProjectMetadata("/p", "model")
	meta.Files["a.ts"] = store.FileMeta{Hash: "h1"}

	p := reconcile([]hashedFile{hashedFixture("a.ts", "h1")}, meta, "model", true)
	assert.True(t, p.fullRebuild)
	assert.Equal(t, []string{"a.ts"}, relPathsOf(p.toIndex))
}

func TestHashFilesDeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	names := []string{"zeta.go", "alpha.go", "mid.go"}
	var files []scanner.ScannedFile
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("content of "+name), 0o644))
		files = append(files, scanner.ScannedFile{AbsPath: path, RelPath: name})
	}

	hashed, skipped, err := hashFiles(context.Background(), files, 4)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, []string{"alpha.go", "mid.go", "zeta.go"}, relPathsOf(hashed))

	// Same inputs, same hashes, regardless of worker scheduling.
	again, _, err := hashFiles(context.Background(), files, 1)
	require.NoError(t, err)
	assert.Equal(t, hashed, again)
}

func TestHashFilesRecordsUnreadable(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.go")
	require.NoError(t, os.WriteFile(good, []byte("package good"), 0o644))

	files := []scanner.ScannedFile{
		{AbsPath: good, RelPath: "good.go"},
		{AbsPath: filepath.Join(dir, "gone.go"), RelPath: "gone.go"},
	}

	hashed, skipped, err := hashFiles(context.Background(), files, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"good.go"}, relPathsOf(hashed))
	require.Len(t, skipped, 1)
	assert.Equal(t, "gone.go", skipped[0].Path)
}

func TestHashContentChangesWithContent(t *testing.T) {
	a := hashContent([]byte("one"))
	b := hashContent([]byte("two"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, hashContent([]byte("one")))
	assert.Len(t, a, 16)
}
