package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/codescout-dev/codescout/internal/ignore"
)

// Scanner discovers indexable files in a project directory.
type Scanner struct{}

// New creates a Scanner.
func New() *Scanner {
	return &Scanner{}
}

// Scan walks the project root and returns the indexable files sorted by
// relative path, plus the paths it had to skip. Whole subtrees matching
// an ignore rule are pruned before descending. Unreadable directories or
// files never abort the scan.
func (s *Scanner) Scan(ctx context.Context, opts Options) (*Result, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	matcher := s.buildMatcher(absRoot, opts.Exclude)

	res := &Result{}
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if err != nil {
			res.Skipped = append(res.Skipped, SkippedPath{Path: relPath, Reason: err.Error()})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			// Prune ignored subtrees before descending.
			if matcher.Match(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks are not followed.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if matcher.Match(relPath) {
			return nil
		}

		base := filepath.Base(relPath)
		if _, excluded := excludedFilenames[base]; excluded {
			return nil
		}

		language := DetectLanguage(relPath)
		if language == "" {
			return nil
		}

		fi, infoErr := d.Info()
		if infoErr != nil {
			res.Skipped = append(res.Skipped, SkippedPath{Path: relPath, Reason: infoErr.Error()})
			return nil
		}
		if fi.Size() >= maxSize {
			res.Skipped = append(res.Skipped, SkippedPath{
				Path:   relPath,
				Reason: fmt.Sprintf("exceeds size cutoff (%d >= %d bytes)", fi.Size(), maxSize),
			})
			return nil
		}

		res.Files = append(res.Files, ScannedFile{
			AbsPath:   path,
			RelPath:   relPath,
			Language:  language,
			SizeBytes: fi.Size(),
		})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	// Deterministic output independent of filesystem iteration order.
	sort.Slice(res.Files, func(i, j int) bool {
		return res.Files[i].RelPath < res.Files[j].RelPath
	})

	if len(res.Skipped) > 0 {
		slog.Debug("scan skipped paths", slog.Int("count", len(res.Skipped)))
	}

	return res, nil
}

// buildMatcher composes the exclusion rules: fixed defaults first, then
// root ignore files, then caller patterns. Later rules win on conflict.
func (s *Scanner) buildMatcher(absRoot string, exclude []string) *ignore.Matcher {
	m := ignore.New()
	m.AddPatterns(defaultExcludePatterns)

	for _, name := range IgnoreFileNames {
		path := filepath.Join(absRoot, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := m.AddFromFile(path); err != nil {
			slog.Warn("failed to read ignore file",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}

	m.AddPatterns(exclude)
	return m
}
