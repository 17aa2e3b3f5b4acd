// Package chunker splits source files into semantically meaningful
// regions. For languages with a registered grammar it walks the syntax
// tree and emits boundary nodes (functions, methods, classes, types)
// as chunks; everything else takes a line-based fallback.
package chunker

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

const (
	// DefaultMinChunkSize discards regions too small to be meaningful.
	DefaultMinChunkSize = 50
	// DefaultMaxChunkSize bounds a single chunk's character count.
	DefaultMaxChunkSize = 8000
	// maxWalkDepth bounds tree traversal on pathological inputs.
	maxWalkDepth = 512
)

// Options configures chunk size bounds.
type Options struct {
	MinChunkSize int
	MaxChunkSize int
}

// Chunker produces ParsedChunks from file content. It owns its
// ParserRegistry and tree-sitter parser; Parse is safe for concurrent
// use.
type Chunker struct {
	mu       sync.Mutex
	registry *ParserRegistry
	parser   *sitter.Parser
	opts     Options
}

// New creates a Chunker with the default language registry.
func New(opts Options) *Chunker {
	return NewWithRegistry(NewParserRegistry(), opts)
}

// NewWithRegistry creates a Chunker with a custom registry.
func NewWithRegistry(registry *ParserRegistry, opts Options) *Chunker {
	if opts.MinChunkSize <= 0 {
		opts.MinChunkSize = DefaultMinChunkSize
	}
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = DefaultMaxChunkSize
	}
	return &Chunker{
		registry: registry,
		parser:   sitter.NewParser(),
		opts:     opts,
	}
}

// Close releases parser resources.
func (c *Chunker) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.parser != nil {
		c.parser.Close()
		c.parser = nil
	}
}

// Parse splits content into chunks. It never returns an error: a
// panic inside the parsing engine is recovered and yields nil, a
// failed or chunkless parse falls back to line-based chunking, and
// empty content yields nil.
func (c *Chunker) Parse(ctx context.Context, content []byte, language string) (chunks []ParsedChunk) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("chunker recovered from parser panic",
				slog.String("language", language),
				slog.Any("panic", r))
			chunks = nil
		}
	}()

	if len(content) == 0 {
		return nil
	}

	cfg, grammar, ok := c.registry.Get(language)
	if !ok {
		return c.chunkLines(string(content))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.parser == nil {
		return c.chunkLines(string(content))
	}

	c.parser.SetLanguage(grammar)
	tree, err := c.parser.ParseCtx(ctx, nil, content)
	if err != nil || tree == nil {
		slog.Warn("syntax parse failed, falling back to line chunking",
			slog.String("language", language))
		return c.chunkLines(string(content))
	}
	defer tree.Close()

	chunks = c.walk([]*sitter.Node{tree.RootNode()}, 0, content, cfg)
	if len(chunks) == 0 {
		// A parsed but chunkless file must still be searchable.
		return c.chunkLines(string(content))
	}
	return chunks
}

// walk traverses nodes depth-first with an explicit stack, emitting
// boundary nodes as chunks. Nodes deeper than maxWalkDepth are
// skipped.
func (c *Chunker) walk(roots []*sitter.Node, depth int, source []byte, cfg *LanguageConfig) []ParsedChunk {
	type frame struct {
		node  *sitter.Node
		depth int
	}

	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{roots[i], depth})
	}

	var chunks []ParsedChunk
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth > maxWalkDepth {
			continue
		}

		n := f.node
		chunkType, boundary := cfg.BoundaryTypes[n.Type()]
		if !boundary {
			for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
				stack = append(stack, frame{n.NamedChild(i), f.depth + 1})
			}
			continue
		}

		size := int(n.EndByte() - n.StartByte())
		switch {
		case size < c.opts.MinChunkSize:
			// Too small to be meaningful, and nothing inside can
			// be larger.
		case size <= c.opts.MaxChunkSize:
			chunks = append(chunks, ParsedChunk{
				Code:       string(source[n.StartByte():n.EndByte()]),
				StartLine:  int(n.StartPoint().Row) + 1,
				EndLine:    int(n.EndPoint().Row) + 1,
				ChunkType:  chunkType,
				SymbolName: extractName(n, source, cfg),
			})
		default:
			// Oversized: look for smaller boundaries inside. When
			// none exist, emit one truncated fallback chunk.
			children := make([]*sitter.Node, 0, n.NamedChildCount())
			for i := 0; i < int(n.NamedChildCount()); i++ {
				children = append(children, n.NamedChild(i))
			}
			inner := c.walk(children, f.depth+1, source, cfg)
			if len(inner) == 0 {
				inner = []ParsedChunk{c.truncatedChunk(n, source)}
			}
			chunks = append(chunks, inner...)
		}
	}
	return chunks
}

// truncatedChunk emits an oversized node cut at the maximum size.
func (c *Chunker) truncatedChunk(n *sitter.Node, source []byte) ParsedChunk {
	code := string(source[n.StartByte():n.EndByte()])
	if len(code) > c.opts.MaxChunkSize {
		code = code[:c.opts.MaxChunkSize]
	}
	return ParsedChunk{
		Code:      code,
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.StartPoint().Row) + 1 + strings.Count(code, "\n"),
		ChunkType: ChunkFile,
	}
}

// extractName reads the boundary node's declared name: the configured
// name field if present, otherwise the first identifier-like
// descendant within a couple of levels.
func extractName(n *sitter.Node, source []byte, cfg *LanguageConfig) string {
	if named := n.ChildByFieldName(cfg.NameField); named != nil {
		return named.Content(source)
	}
	return findIdentifier(n, source, 0)
}

func findIdentifier(n *sitter.Node, source []byte, depth int) string {
	if depth > 3 {
		return ""
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if strings.Contains(child.Type(), "identifier") {
			return child.Content(source)
		}
		if name := findIdentifier(child, source, depth+1); name != "" {
			return name
		}
	}
	return ""
}

// chunkLines is the fallback for unsupported languages and failed or
// chunkless parses. Lines accumulate until adding the next would
// exceed the maximum size, then flush. A whole file smaller than the
// minimum still yields one chunk rather than nothing.
func (c *Chunker) chunkLines(content string) []ParsedChunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	if len(content) < c.opts.MinChunkSize {
		return []ParsedChunk{{
			Code:      content,
			StartLine: 1,
			EndLine:   1 + strings.Count(strings.TrimRight(content, "\n"), "\n"),
			ChunkType: ChunkFile,
		}}
	}

	lines := strings.Split(content, "\n")
	var chunks []ParsedChunk
	var buf []string
	bufLen := 0
	startLine := 1

	flush := func(endLine int) {
		if bufLen >= c.opts.MinChunkSize {
			code := strings.Join(buf, "\n")
			if len(code) > c.opts.MaxChunkSize {
				// A single line can exceed the maximum on its own
				// (minified output and the like).
				code = code[:c.opts.MaxChunkSize]
			}
			chunks = append(chunks, ParsedChunk{
				Code:      code,
				StartLine: startLine,
				EndLine:   endLine,
				ChunkType: ChunkLines,
			})
		}
		buf = buf[:0]
		bufLen = 0
	}

	for i, line := range lines {
		add := len(line)
		if len(buf) > 0 {
			add++ // joining newline
		}
		if bufLen+add > c.opts.MaxChunkSize && len(buf) > 0 {
			flush(i)
			startLine = i + 1
			add = len(line)
		}
		buf = append(buf, line)
		bufLen += add
	}
	flush(len(lines))

	return chunks
}
