// Package store persists chunk records and vectors per project and
// serves filtered similarity search over them.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// CodeChunk is one persisted, vectorized code region.
type CodeChunk struct {
	ID         string
	FilePath   string
	Code       string
	StartLine  int
	EndLine    int
	FileHash   string
	ChunkType  string
	Language   string
	SymbolName string
	Vector     []float32
}

// Filter narrows a similarity search.
type Filter struct {
	// Limit caps the number of results. Defaults to 10.
	Limit int
	// Language, when set, matches chunks of that language exactly.
	Language string
	// ChunkType, when set, matches the chunk type exactly.
	ChunkType string
	// FilePattern, when set, substring-matches the file path.
	FilePattern string
	// MinScore drops results scoring below it.
	MinScore float32
}

// SearchResult is one similarity hit. Distance is normalized to
// [0, 1]; Score = 1 - Distance.
type SearchResult struct {
	Chunk    CodeChunk
	Score    float32
	Distance float32
}

// ChunkID derives a chunk's identity from its location and the
// containing file's content hash. It is a pure function of the four
// inputs: an unchanged file reproduces identical IDs, any content
// change produces new IDs for every chunk of that file.
func ChunkID(relPath string, startLine, endLine int, fileHash string) string {
	input := fmt.Sprintf("%s|%d|%d|%s", relPath, startLine, endLine, fileHash)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}
