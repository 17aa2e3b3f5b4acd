package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codescout-dev/codescout/internal/embed"
	"github.com/codescout-dev/codescout/internal/index"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit       int
	language    string
	chunkType   string
	filePattern string
	minScore    float32
	format      string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed project",
		Long: `Search the indexed project by meaning.

The query is embedded and matched against indexed code chunks by
vector similarity.

Examples:
  codescout search "authentication middleware"
  codescout search "parse config file" --language go --limit 5
  codescout search "retry logic" --type function --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Filter by language (e.g. go, python)")
	cmd.Flags().StringVarP(&opts.chunkType, "type", "t", "", "Filter by chunk type (e.g. function, class)")
	cmd.Flags().StringVarP(&opts.filePattern, "path", "p", "", "Filter by file path substring")
	cmd.Flags().Float32Var(&opts.minScore, "min-score", 0, "Drop results scoring below this value")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	root, cfg, err := resolveProject(".")
	if err != nil {
		return err
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	if cfg.Embeddings.CacheSize > 0 {
		embedder = embed.NewCachedEmbedder(embedder, cfg.Embeddings.CacheSize)
	}

	orch := index.New(cfg, embedder)
	defer orch.Close()

	results := orch.Search(ctx, root, query, index.SearchOptions{
		Limit:       opts.limit,
		Language:    opts.language,
		ChunkType:   opts.chunkType,
		FilePattern: opts.filePattern,
		MinScore:    opts.minScore,
	})

	if opts.format == "json" {
		return printResultsJSON(cmd, results)
	}
	return printResultsText(cmd, query, results)
}

// searchResultJSON is the JSON output shape for one hit.
type searchResultJSON struct {
	FilePath   string  `json:"file_path"`
	StartLine  int     `json:"start_line"`
	EndLine    int     `json:"end_line"`
	Language   string  `json:"language"`
	ChunkType  string  `json:"chunk_type"`
	SymbolName string  `json:"symbol_name,omitempty"`
	Score      float32 `json:"score"`
	Code       string  `json:"code"`
}

func printResultsJSON(cmd *cobra.Command, results []index.SearchResult) error {
	out := make([]searchResultJSON, 0, len(results))
	for _, r := range results {
		out = append(out, searchResultJSON{
			FilePath:   r.Chunk.FilePath,
			StartLine:  r.Chunk.StartLine,
			EndLine:    r.Chunk.EndLine,
			Language:   r.Chunk.Language,
			ChunkType:  r.Chunk.ChunkType,
			SymbolName: r.Chunk.SymbolName,
			Score:      r.Score,
			Code:       r.Chunk.Code,
		})
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printResultsText(cmd *cobra.Command, query string, results []index.SearchResult) error {
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		_, _ = fmt.Fprintf(out, "No results for %q\n", query)
		return nil
	}

	for i, r := range results {
		header := fmt.Sprintf("%d. %s:%d-%d", i+1, r.Chunk.FilePath, r.Chunk.StartLine, r.Chunk.EndLine)
		if r.Chunk.SymbolName != "" {
			header += fmt.Sprintf("  %s %s", r.Chunk.ChunkType, r.Chunk.SymbolName)
		}
		_, _ = fmt.Fprintf(out, "%s  (score %.2f)\n", header, r.Score)
		_, _ = fmt.Fprintln(out, indentSnippet(r.Chunk.Code, 6))
	}
	return nil
}

// indentSnippet returns the first maxLines lines of code, indented for
// display under a result header.
func indentSnippet(code string, maxLines int) string {
	lines := strings.Split(strings.TrimRight(code, "\n"), "\n")
	truncated := false
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		truncated = true
	}
	var b strings.Builder
	for _, line := range lines {
		b.WriteString("   ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	if truncated {
		b.WriteString("   ...\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
