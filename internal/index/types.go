// Package index orchestrates the indexing pipeline: scan, reconcile,
// chunk, embed, store, clean. It owns the per-project lock and the
// project metadata, and serves the search path.
package index

import (
	"time"

	"github.com/codescout-dev/codescout/internal/scanner"
	"github.com/codescout-dev/codescout/internal/store"
)

// Phase is one stage of an indexing run. Phases are strictly ordered;
// PhaseError is reachable from any of them.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseScanning     Phase = "scanning"
	PhaseHashing      Phase = "hashing"
	PhaseParsing      Phase = "parsing"
	PhaseEmbedding    Phase = "embedding"
	PhaseStoring      Phase = "storing"
	PhaseCleaning     Phase = "cleaning"
	PhaseDone         Phase = "done"
	PhaseError        Phase = "error"
)

// Progress is reported synchronously at phase and batch boundaries.
type Progress struct {
	Phase   Phase
	Current int
	Total   int
	// CurrentFile is the file being processed, for per-file phases.
	CurrentFile string
	// Message carries error text and other phase notes.
	Message string
}

// Options configures one indexing run.
type Options struct {
	// Force drops the existing index and rebuilds from scratch.
	Force bool
}

// Result is the outcome of an indexing run. Index never returns a Go
// error for run failures: Err carries the failure and the counters
// carry whatever partial progress was made.
type Result struct {
	Success      bool
	FilesScanned int
	FilesIndexed int
	FilesSkipped int
	FilesRemoved int
	TotalChunks  int
	Duration     time.Duration
	Err          error
}

// SearchOptions narrows a search.
type SearchOptions struct {
	Limit       int
	Language    string
	ChunkType   string
	FilePattern string
	MinScore    float32
}

// Stats describes a project's index.
type Stats struct {
	Files      int
	Chunks     int
	SizeOnDisk int64
	UpdatedAt  time.Time
	Model      string
}

// hashedFile pairs a scanned file with its content hash for the
// reconcile and parse phases.
type hashedFile struct {
	scanner.ScannedFile
	Hash string
}

// plan is the reconciler's output.
type plan struct {
	toIndex     []hashedFile
	toSkip      []string
	toDelete    []string
	fullRebuild bool
}

// SearchResult is re-exported so callers need only this package.
type SearchResult = store.SearchResult
