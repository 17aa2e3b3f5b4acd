package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/codescout-dev/codescout/internal/scanner"
	"github.com/codescout-dev/codescout/internal/store"
)

// hashFiles computes content hashes for scanned files with bounded
// parallelism. Unreadable files are returned separately rather than
// failing the run; the merge is deterministic because results are
// keyed and re-sorted by relative path.
func hashFiles(ctx context.Context, files []scanner.ScannedFile, workers int) ([]hashedFile, []scanner.SkippedPath, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var mu sync.Mutex
	hashes := make(map[string]string, len(files))
	var skipped []scanner.SkippedPath

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, file := range files {
		file := file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(file.AbsPath)
			if err != nil {
				mu.Lock()
				skipped = append(skipped, scanner.SkippedPath{
					Path:   file.RelPath,
					Reason: "unreadable: " + err.Error(),
				})
				mu.Unlock()
				return nil
			}
			sum := hashContent(data)
			mu.Lock()
			hashes[file.RelPath] = sum
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	hashed := make([]hashedFile, 0, len(hashes))
	for _, file := range files {
		if sum, ok := hashes[file.RelPath]; ok {
			hashed = append(hashed, hashedFile{ScannedFile: file, Hash: sum})
		}
	}
	sort.Slice(hashed, func(i, j int) bool { return hashed[i].RelPath < hashed[j].RelPath })
	return hashed, skipped, nil
}

// hashContent returns the content hash used for change detection.
func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// reconcile splits the hashed scan against prior metadata into files
// to index, files to skip, and files to delete. A model change or a
// forced run means a full rebuild: everything is re-indexed and the
// vector table is dropped, so nothing needs individual deletion.
func reconcile(files []hashedFile, meta *store.ProjectMetadata, model string, force bool) plan {
	p := plan{}

	if force || meta == nil || meta.EmbeddingModel != model {
		p.fullRebuild = meta != nil || force
		p.toIndex = files
		return p
	}

	current := make(map[string]struct{}, len(files))
	for _, file := range files {
		current[file.RelPath] = struct{}{}
		if prior, ok := meta.Files[file.RelPath]; ok && prior.Hash == file.Hash {
			p.toSkip = append(p.toSkip, file.RelPath)
			continue
		}
		p.toIndex = append(p.toIndex, file)
	}

	for rel := range meta.Files {
		if _, ok := current[rel]; !ok {
			p.toDelete = append(p.toDelete, rel)
		}
	}
	sort.Strings(p.toDelete)
	return p
}
