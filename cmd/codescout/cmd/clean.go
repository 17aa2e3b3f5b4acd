package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codescout-dev/codescout/internal/index"
)

func newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean [path]",
		Short: "Delete a project's index",
		Long: `Delete all index data for a project: its chunk database, metadata,
and lock file. The project's source files are untouched. Run
'codescout index' to rebuild.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runClean(cmd.Context(), cmd, path)
		},
	}

	return cmd
}

func runClean(ctx context.Context, cmd *cobra.Command, path string) error {
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

	if err := orch.DeleteIndex(ctx, root); err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted index for %s\n", root)
	return nil
}
