package chunker

// Chunk types assigned by the chunker. AST boundary nodes map to a
// type derived from their node kind; the fallbacks use ChunkFile for
// whole-file and truncated oversized chunks and ChunkLines for
// line-accumulated chunks.
const (
	ChunkFunction  = "function"
	ChunkMethod    = "method"
	ChunkClass     = "class"
	ChunkInterface = "interface"
	ChunkType      = "type"
	ChunkConst     = "const"
	ChunkVar       = "var"
	ChunkFile      = "file"
	ChunkLines     = "lines"
)

// ParsedChunk is one code region produced by the chunker. It is not
// yet persisted or vectorized.
type ParsedChunk struct {
	// Code is the chunk's source text.
	Code string
	// StartLine and EndLine are 1-based and inclusive.
	StartLine int
	EndLine   int
	// ChunkType is one of the Chunk* constants.
	ChunkType string
	// SymbolName is the declared name for AST chunks, empty for
	// fallback chunks or when no name could be extracted.
	SymbolName string
}
