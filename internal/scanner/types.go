// Package scanner discovers indexable files under a project root,
// honoring ignore files, caller-supplied exclusions, and a fixed default
// exclusion set. Unreadable paths are recorded, never fatal.
package scanner

// ScannedFile is one indexable file discovered during a scan.
type ScannedFile struct {
	AbsPath   string // Absolute path on disk
	RelPath   string // Path relative to the project root, slash-separated
	Language  string // Detected language (go, typescript, python, ...)
	SizeBytes int64
}

// SkippedPath records a path the scanner could not process, with the
// reason, so degraded traversal stays observable.
type SkippedPath struct {
	Path   string
	Reason string
}

// Result holds the outcome of one scan: files sorted by relative path
// plus the accumulated skips.
type Result struct {
	Files   []ScannedFile
	Skipped []SkippedPath
}

// Options configures a scan.
type Options struct {
	// Root is the project root directory.
	Root string

	// Exclude holds additional ignore patterns applied after the
	// defaults and the on-disk ignore files.
	Exclude []string

	// MaxFileSize is the inclusion cutoff in bytes (0 = DefaultMaxFileSize).
	MaxFileSize int64
}

// DefaultMaxFileSize is the file-size inclusion cutoff (1 MiB).
const DefaultMaxFileSize = 1 << 20

// IgnoreFileNames are the on-disk ignore files consulted at the project
// root, in order.
var IgnoreFileNames = []string{".gitignore", ".codescoutignore"}

// defaultExcludePatterns is the fixed exclusion set applied before any
// ignore-file or caller patterns.
var defaultExcludePatterns = []string{
	".git",
	".hg",
	".svn",
	"node_modules",
	"vendor",
	"dist",
	"build",
	"out",
	"target",
	"__pycache__",
	".venv",
	"venv",
	".idea",
	".vscode",
	".codescout",
	"*.min.js",
	"*.min.css",
	"*.map",
}

// excludedFilenames are well-known non-source files never indexed
// regardless of extension.
var excludedFilenames = map[string]struct{}{
	"package-lock.json": {},
	"yarn.lock":         {},
	"pnpm-lock.yaml":    {},
	"go.sum":            {},
	"Cargo.lock":        {},
	"Gemfile.lock":      {},
	"composer.lock":     {},
	"poetry.lock":       {},
	"uv.lock":           {},
	".DS_Store":         {},
}

// languageByExtension maps file extensions to languages. A file whose
// extension is absent here is not indexable.
var languageByExtension = map[string]string{
	".go":     "go",
	".js":     "javascript",
	".mjs":    "javascript",
	".cjs":    "javascript",
	".jsx":    "javascript",
	".ts":     "typescript",
	".tsx":    "tsx",
	".py":     "python",
	".pyi":    "python",
	".rb":     "ruby",
	".rs":     "rust",
	".java":   "java",
	".kt":     "kotlin",
	".c":      "c",
	".h":      "c",
	".cpp":    "cpp",
	".cc":     "cpp",
	".hpp":    "cpp",
	".cs":     "csharp",
	".php":    "php",
	".swift":  "swift",
	".scala":  "scala",
	".ex":     "elixir",
	".exs":    "elixir",
	".hs":     "haskell",
	".lua":    "lua",
	".sh":     "shell",
	".bash":   "shell",
	".zsh":    "shell",
	".sql":    "sql",
	".proto":  "protobuf",
	".md":     "markdown",
	".mdx":    "markdown",
	".rst":    "rst",
	".yaml":   "yaml",
	".yml":    "yaml",
	".toml":   "toml",
	".json":   "json",
	".html":   "html",
	".css":    "css",
	".scss":   "scss",
	".vue":    "vue",
	".svelte": "svelte",
}

// DetectLanguage returns the language for a path, or "" when the
// extension is unknown.
func DetectLanguage(path string) string {
	ext := extension(path)
	if ext == "" {
		return ""
	}
	return languageByExtension[ext]
}

// extension returns the final extension including the dot, lowercase.
func extension(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			return lower(path[i:])
		case '/', '\\':
			return ""
		}
	}
	return ""
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
