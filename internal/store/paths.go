package store

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// ProjectDirName returns the stable directory name for a project,
// derived from a hash of its absolute path rather than the path text
// so the name is filesystem-safe and unaffected by path aliases.
func ProjectDirName(absPath string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(absPath)))
	return hex.EncodeToString(sum[:])[:16]
}

// ProjectDir returns the per-project index directory under dataRoot.
func ProjectDir(dataRoot, absPath string) string {
	return filepath.Join(dataRoot, "projects", ProjectDirName(absPath))
}

// Well-known file names inside a project's index directory.
const (
	MetadataFileName = "metadata.json"
	ChunksDBFileName = "chunks.db"
	LockFileName     = "index.lock"
)
