package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codescout-dev/codescout/internal/index"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats [path]",
		Short: "Show index statistics",
		Long:  `Display statistics about a project's index: file and chunk counts, size on disk, embedding model, and last update time.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runStats(cmd.Context(), cmd, path, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// statsOutput is the JSON output shape for stats.
type statsOutput struct {
	Files      int    `json:"files"`
	Chunks     int    `json:"chunks"`
	SizeBytes  int64  `json:"size_bytes"`
	Model      string `json:"model,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
	ProjectDir string `json:"project_dir"`
}

func runStats(ctx context.Context, cmd *cobra.Command, path string, jsonOutput bool) error {
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

	stats, err := orch.Stats(ctx, root)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		payload := statsOutput{
			Files:      stats.Files,
			Chunks:     stats.Chunks,
			SizeBytes:  stats.SizeOnDisk,
			Model:      stats.Model,
			ProjectDir: root,
		}
		if !stats.UpdatedAt.IsZero() {
			payload.UpdatedAt = stats.UpdatedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	if stats.Files == 0 && stats.Chunks == 0 {
		_, _ = fmt.Fprintf(out, "No index found for %s\nRun 'codescout index' to create one.\n", root)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Index for %s\n", root)
	_, _ = fmt.Fprintf(out, "  Files:   %d\n", stats.Files)
	_, _ = fmt.Fprintf(out, "  Chunks:  %d\n", stats.Chunks)
	_, _ = fmt.Fprintf(out, "  Size:    %s\n", formatBytes(stats.SizeOnDisk))
	if stats.Model != "" {
		_, _ = fmt.Fprintf(out, "  Model:   %s\n", stats.Model)
	}
	if !stats.UpdatedAt.IsZero() {
		_, _ = fmt.Fprintf(out, "  Updated: %s\n", stats.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

// formatBytes renders a byte count in human units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
