package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codescout-dev/codescout/configs"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter .codescout.yaml",
		Long: `Write an annotated .codescout.yaml configuration file to the
project root. Every setting in the file is optional; edit it to
override the defaults.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runInit(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing .codescout.yaml")

	return cmd
}

func runInit(cmd *cobra.Command, path string, force bool) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	target := filepath.Join(absPath, ".codescout.yaml")
	if !force {
		if _, err := os.Stat(target); err == nil {
			return fmt.Errorf("%s already exists, use --force to overwrite", target)
		}
	}

	if err := os.WriteFile(target, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)
	return nil
}
