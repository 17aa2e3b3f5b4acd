package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codescout-dev/codescout/internal/index"
)

func newIndexCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a project for semantic search",
		Long: `Index a project directory to enable semantic search over its code.

This scans source files, chunks them along code boundaries, generates
embeddings, and stores them in a per-project vector index. Re-running
is incremental: only added, changed, and removed files are processed.

Use --force to discard the existing index and rebuild from scratch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runIndex(ctx, cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Discard existing index and rebuild from scratch")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string, force bool) error {
	root, cfg, err := resolveProject(path)
	if err != nil {
		return err
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	orch := index.New(cfg, embedder)
	defer orch.Close()

	out := cmd.OutOrStdout()
	printer := newProgressPrinter(out)
	orch.SetProgress(printer.Update)

	_, _ = fmt.Fprintf(out, "Indexing %s\n", root)
	result := orch.Index(ctx, root, index.Options{Force: force})
	printer.Finish()

	if !result.Success {
		return fmt.Errorf("indexing failed: %w", result.Err)
	}

	_, _ = fmt.Fprintf(out, "Indexed %d files (%d chunks) in %s\n",
		result.FilesIndexed, result.TotalChunks, result.Duration.Round(timeRound))
	if result.FilesSkipped > 0 {
		_, _ = fmt.Fprintf(out, "  %d files unchanged\n", result.FilesSkipped)
	}
	if result.FilesRemoved > 0 {
		_, _ = fmt.Fprintf(out, "  %d removed files cleaned up\n", result.FilesRemoved)
	}
	return nil
}
