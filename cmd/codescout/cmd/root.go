// Package cmd provides the CLI commands for codescout.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/codescout-dev/codescout/internal/config"
	"github.com/codescout-dev/codescout/internal/embed"
	"github.com/codescout-dev/codescout/internal/logging"
	"github.com/codescout-dev/codescout/pkg/version"
)

var (
	debugMode      bool
	dataRoot       string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the codescout CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codescout",
		Short: "Local semantic code search",
		Long: `Codescout indexes a source project into a local vector index
and answers natural-language queries over it.

Run 'codescout index' in your project directory, then
'codescout search "your query"'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("codescout version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.codescout/logs/")
	cmd.PersistentFlags().StringVar(&dataRoot, "data-root", "", "Directory holding index data (default ~/.codescout)")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newCleanCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging routes slog to the log file, keeping stdout free for
// user-facing output.
func startLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg.Level = "debug"
	}
	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		// Logging is not critical for the CLI; fall back to discard.
		return nil
	}
	loggingCleanup = cleanup
	if debugMode {
		slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	}
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// resolveProject turns a CLI path argument into a project root and its
// configuration. A path inside a project resolves to the enclosing
// root (marked by .git or .codescout.yaml).
func resolveProject(path string) (string, *config.Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return "", nil, fmt.Errorf("path is not a directory: %s", absPath)
	}

	root, err := config.FindProjectRoot(absPath)
	if err != nil {
		root = absPath
	}

	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dataRoot != "" {
		cfg.DataRoot = dataRoot
	}
	return root, cfg, nil
}

// newEmbedder builds the HTTP embedding client from configuration.
func newEmbedder(cfg *config.Config) (embed.Embedder, error) {
	timeout := embed.DefaultRequestTimeout
	if cfg.Embeddings.RequestTimeout != "" {
		if d, err := time.ParseDuration(cfg.Embeddings.RequestTimeout); err == nil && d > 0 {
			timeout = d
		}
	}
	return embed.NewClient(embed.Config{
		Endpoint:       cfg.Embeddings.Endpoint,
		Model:          cfg.Embeddings.Model,
		APIKey:         cfg.Embeddings.APIKey,
		Dimensions:     cfg.Embeddings.Dimensions,
		BatchSize:      cfg.Embeddings.BatchSize,
		RequestTimeout: timeout,
	})
}
