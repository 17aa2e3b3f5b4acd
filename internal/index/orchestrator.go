package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/codescout-dev/codescout/internal/chunker"
	"github.com/codescout-dev/codescout/internal/config"
	"github.com/codescout-dev/codescout/internal/embed"
	"github.com/codescout-dev/codescout/internal/scanner"
	"github.com/codescout-dev/codescout/internal/store"
	"github.com/codescout-dev/codescout/internal/xerrors"
)

// Orchestrator runs the indexing pipeline and the search path for one
// or more projects. It is the sole writer of project metadata and
// vector rows.
type Orchestrator struct {
	cfg      *config.Config
	embedder embed.Embedder
	chunker  *chunker.Chunker
	scanner  *scanner.Scanner
	progress func(Progress)
}

// New creates an orchestrator.
func New(cfg *config.Config, embedder embed.Embedder) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		embedder: embedder,
		chunker: chunker.New(chunker.Options{
			MinChunkSize: cfg.Chunking.MinChunkSize,
			MaxChunkSize: cfg.Chunking.MaxChunkSize,
		}),
		scanner: scanner.New(),
	}
}

// SetProgress registers a callback invoked synchronously at phase and
// batch boundaries.
func (o *Orchestrator) SetProgress(fn func(Progress)) {
	o.progress = fn
}

// Close releases the chunker's parser.
func (o *Orchestrator) Close() {
	o.chunker.Close()
}

func (o *Orchestrator) report(p Progress) {
	if o.progress != nil {
		o.progress(p)
	}
}

// Index runs the full pipeline for the project at projectPath. It
// never returns a Go error: failures set Result.Err and Success=false
// with whatever partial progress was made.
func (o *Orchestrator) Index(ctx context.Context, projectPath string, opts Options) *Result {
	start := time.Now()
	result := &Result{}
	defer func() { result.Duration = time.Since(start) }()

	fail := func(err error) *Result {
		result.Err = err
		o.report(Progress{Phase: PhaseError, Message: err.Error()})
		slog.Error("indexing failed",
			slog.String("project", projectPath),
			slog.String("error", err.Error()))
		return result
	}

	o.report(Progress{Phase: PhaseInitializing})

	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return fail(xerrors.Scan("resolve project path", err))
	}
	indexDir := store.ProjectDir(o.cfg.DataRoot, absPath)

	lock := newProjectLock(indexDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return fail(xerrors.Lock("acquire project lock", err))
	}
	if !acquired {
		return fail(xerrors.Lock("another indexing run holds the project lock", nil))
	}
	defer func() { _ = lock.Unlock() }()

	metaStore := store.NewMetadataStore(indexDir)
	vs := store.NewVectorStore(indexDir)
	if err := vs.Connect(ctx); err != nil {
		return fail(err)
	}
	defer func() { _ = vs.Close() }()

	// Scanning.
	o.report(Progress{Phase: PhaseScanning})
	scanRes, err := o.scanner.Scan(ctx, scanner.Options{
		Root:        absPath,
		Exclude:     o.cfg.Paths.Exclude,
		MaxFileSize: o.cfg.Paths.MaxFileSize,
	})
	if err != nil {
		return fail(xerrors.Scan("scan project", err))
	}
	result.FilesScanned = len(scanRes.Files)

	// Hashing.
	o.report(Progress{Phase: PhaseHashing, Total: len(scanRes.Files)})
	hashed, unreadable, err := hashFiles(ctx, scanRes.Files, o.cfg.Performance.HashWorkers)
	if err != nil {
		return fail(xerrors.Scan("hash files", err))
	}
	for _, skip := range unreadable {
		slog.Warn("file skipped", slog.String("path", skip.Path), slog.String("reason", skip.Reason))
	}

	meta, err := metaStore.Load()
	if err != nil {
		return fail(err)
	}

	model := o.embedder.ModelName()
	p := reconcile(hashed, meta, model, opts.Force)
	result.FilesSkipped = len(p.toSkip) + len(unreadable)

	if p.fullRebuild {
		slog.Info("full rebuild",
			slog.String("project", absPath),
			slog.Bool("forced", opts.Force))
		if err := vs.DropTable(ctx); err != nil {
			return fail(err)
		}
		meta = nil
	}
	if meta == nil {
		meta = store.NewProjectMetadata(absPath, model)
	}

	// Zero-change runs go straight to done.
	if len(p.toIndex) > 0 {
		chunks, chunkCounts, err := o.parsePhase(ctx, p.toIndex)
		if err != nil {
			return fail(err)
		}

		if err := o.embedPhase(ctx, chunks); err != nil {
			return fail(err)
		}

		if err := o.storePhase(ctx, vs, p.toIndex, chunks, chunkCounts); err != nil {
			return fail(err)
		}
		for _, file := range p.toIndex {
			meta.Files[file.RelPath] = store.FileMeta{
				Hash:       file.Hash,
				ChunkCount: chunkCounts[file.RelPath],
				Language:   file.Language,
			}
		}
		result.FilesIndexed = len(p.toIndex)
		result.TotalChunks = len(chunks)
		if dims := o.embedder.Dimensions(); dims > 0 {
			meta.EmbeddingDimension = dims
		}
		if err := o.checkpoint(metaStore, meta); err != nil {
			return fail(err)
		}
	}

	if len(p.toDelete) > 0 {
		o.report(Progress{Phase: PhaseCleaning, Total: len(p.toDelete)})
		if err := vs.DeleteFilesChunks(ctx, p.toDelete); err != nil {
			return fail(err)
		}
		for _, rel := range p.toDelete {
			delete(meta.Files, rel)
		}
		result.FilesRemoved = len(p.toDelete)
		if err := o.checkpoint(metaStore, meta); err != nil {
			return fail(err)
		}
	}

	// Finalize counters and persist.
	meta.EmbeddingModel = model
	meta.TotalFiles = len(meta.Files)
	total := 0
	for _, fm := range meta.Files {
		total += fm.ChunkCount
	}
	meta.TotalChunks = total
	if err := o.checkpoint(metaStore, meta); err != nil {
		return fail(err)
	}

	result.TotalChunks = meta.TotalChunks
	result.Success = true
	o.report(Progress{Phase: PhaseDone})
	slog.Info("indexing complete",
		slog.String("project", absPath),
		slog.Int("scanned", result.FilesScanned),
		slog.Int("indexed", result.FilesIndexed),
		slog.Int("skipped", result.FilesSkipped),
		slog.Int("removed", result.FilesRemoved),
		slog.Int("chunks", result.TotalChunks),
		slog.Duration("duration", time.Since(start)))
	return result
}

// parsePhase chunks every changed file. Per-file read and parse
// problems are logged and skipped; they never abort the run.
func (o *Orchestrator) parsePhase(ctx context.Context, files []hashedFile) ([]store.CodeChunk, map[string]int, error) {
	o.report(Progress{Phase: PhaseParsing, Total: len(files)})

	var chunks []store.CodeChunk
	counts := make(map[string]int, len(files))

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, nil, xerrors.New(xerrors.KindInternal, "parsing canceled", err)
		}

		content, err := os.ReadFile(file.AbsPath)
		if err != nil {
			slog.Warn("file unreadable at parse time",
				slog.String("path", file.RelPath),
				slog.String("error", err.Error()))
			counts[file.RelPath] = 0
			continue
		}

		parsed := o.chunker.Parse(ctx, content, file.Language)
		counts[file.RelPath] = len(parsed)
		for _, pc := range parsed {
			chunks = append(chunks, store.CodeChunk{
				ID:         store.ChunkID(file.RelPath, pc.StartLine, pc.EndLine, file.Hash),
				FilePath:   file.RelPath,
				Code:       pc.Code,
				StartLine:  pc.StartLine,
				EndLine:    pc.EndLine,
				FileHash:   file.Hash,
				ChunkType:  pc.ChunkType,
				Language:   file.Language,
				SymbolName: pc.SymbolName,
			})
		}

		o.report(Progress{Phase: PhaseParsing, Current: i + 1, Total: len(files), CurrentFile: file.RelPath})
	}
	return chunks, counts, nil
}

// embedPhase fills in chunk vectors in batches of the configured
// size. Embedding failures are fatal to the run: a partially embedded
// chunk set would break chunk-to-vector correspondence.
func (o *Orchestrator) embedPhase(ctx context.Context, chunks []store.CodeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batchSize := o.cfg.Embeddings.BatchSize
	if batchSize <= 0 {
		batchSize = embed.DefaultBatchSize
	}
	totalBatches := (len(chunks) + batchSize - 1) / batchSize
	o.report(Progress{Phase: PhaseEmbedding, Total: totalBatches})

	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-i)
		for _, c := range chunks[i:end] {
			texts = append(texts, c.Code)
		}

		vectors, err := o.embedder.EmbedAll(ctx, texts, embed.ModeDocument)
		if err != nil {
			return err
		}
		for j := range vectors {
			chunks[i+j].Vector = vectors[j]
		}

		o.report(Progress{
			Phase:   PhaseEmbedding,
			Current: i/batchSize + 1,
			Total:   totalBatches,
		})
	}
	return nil
}

// storePhase replaces the rows of every indexed file. The upsert only
// deletes rows for paths present in the chunk batch, so files whose
// new content produced no chunks (truncated to whitespace, unreadable
// at parse time) get their previous rows removed explicitly; leaving
// them would keep stale chunks searchable forever once the new hash is
// recorded.
func (o *Orchestrator) storePhase(ctx context.Context, vs *store.VectorStore, files []hashedFile, chunks []store.CodeChunk, counts map[string]int) error {
	o.report(Progress{Phase: PhaseStoring, Total: len(chunks)})

	var emptied []string
	for _, file := range files {
		if counts[file.RelPath] == 0 {
			emptied = append(emptied, file.RelPath)
		}
	}
	if len(emptied) > 0 {
		if err := vs.DeleteFilesChunks(ctx, emptied); err != nil {
			return err
		}
	}

	if err := vs.UpsertChunks(ctx, chunks); err != nil {
		return err
	}
	o.report(Progress{Phase: PhaseStoring, Current: len(chunks), Total: len(chunks)})
	return nil
}

func (o *Orchestrator) checkpoint(metaStore *store.MetadataStore, meta *store.ProjectMetadata) error {
	if err := metaStore.Save(meta); err != nil {
		return xerrors.Metadata("save checkpoint", err)
	}
	return nil
}

// Search embeds the query and runs a filtered similarity search.
// It returns an empty slice, not an error, when no index exists for
// the project and on any internal failure (logged): search stays
// available even when the index is broken.
func (o *Orchestrator) Search(ctx context.Context, projectPath, query string, opts SearchOptions) []SearchResult {
	empty := []SearchResult{}

	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		slog.Warn("search: bad project path", slog.String("error", err.Error()))
		return empty
	}
	indexDir := store.ProjectDir(o.cfg.DataRoot, absPath)

	if _, err := os.Stat(filepath.Join(indexDir, store.ChunksDBFileName)); err != nil {
		slog.Debug("search: no index for project", slog.String("project", absPath))
		return empty
	}

	vs := store.NewVectorStore(indexDir)
	if err := vs.Connect(ctx); err != nil {
		slog.Warn("search: store unavailable", slog.String("error", err.Error()))
		return empty
	}
	defer func() { _ = vs.Close() }()

	vector, err := o.embedder.EmbedQuery(ctx, query)
	if err != nil {
		slog.Warn("search: query embedding failed", slog.String("error", err.Error()))
		return empty
	}

	results, err := vs.Search(ctx, vector, store.Filter{
		Limit:       opts.Limit,
		Language:    opts.Language,
		ChunkType:   opts.ChunkType,
		FilePattern: opts.FilePattern,
		MinScore:    opts.MinScore,
	})
	if err != nil {
		slog.Warn("search failed", slog.String("error", err.Error()))
		return empty
	}
	return results
}

// Stats describes the project's index. A project without an index
// yields zero stats.
func (o *Orchestrator) Stats(ctx context.Context, projectPath string) (*Stats, error) {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, fmt.Errorf("resolve project path: %w", err)
	}
	indexDir := store.ProjectDir(o.cfg.DataRoot, absPath)

	meta, err := store.NewMetadataStore(indexDir).Load()
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return &Stats{}, nil
	}

	vs := store.NewVectorStore(indexDir)
	size, err := vs.SizeOnDisk()
	if err != nil {
		return nil, err
	}

	return &Stats{
		Files:      meta.TotalFiles,
		Chunks:     meta.TotalChunks,
		SizeOnDisk: size,
		UpdatedAt:  meta.UpdatedAt,
		Model:      meta.EmbeddingModel,
	}, nil
}

// DeleteIndex removes the project's index directory entirely.
func (o *Orchestrator) DeleteIndex(ctx context.Context, projectPath string) error {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}
	indexDir := store.ProjectDir(o.cfg.DataRoot, absPath)

	if err := os.RemoveAll(indexDir); err != nil {
		return xerrors.Storage("remove index directory", err)
	}
	slog.Info("index deleted", slog.String("project", absPath))
	return nil
}
