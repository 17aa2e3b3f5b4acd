package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSource = `package sample

import "fmt"

// Greet prints a greeting for the given name and returns the
// formatted message so callers can reuse it elsewhere.
func Greet(name string) string {
	msg := fmt.Sprintf("hello, %s", name)
	fmt.Println(msg)
	return msg
}

// Counter tracks a running total across increments and exposes
// the current value through its Value accessor method.
type Counter struct {
	total    int
	step     int
	disabled bool
}

// Add increments the counter by n and returns the new total so
// callers can chain reads without a second method call.
func (c *Counter) Add(n int) int {
	c.total += n
	return c.total
}
`

const pySource = `import os


def read_config(path):
    """Read a configuration file and return its parsed contents."""
    with open(path) as f:
        return f.read()


class Loader:
    """Loads and caches configuration files from a base directory."""

    def __init__(self, base):
        self.base = base

    def load(self, name):
        return read_config(os.path.join(self.base, name))
`

func TestParseGoBoundaries(t *testing.T) {
	c := New(Options{})
	defer c.Close()

	chunks := c.Parse(context.Background(), []byte(goSource), "go")
	require.NotEmpty(t, chunks)

	byName := map[string]ParsedChunk{}
	for _, ch := range chunks {
		byName[ch.SymbolName] = ch
	}

	greet, ok := byName["Greet"]
	require.True(t, ok, "Greet function should be chunked")
	assert.Equal(t, ChunkFunction, greet.ChunkType)
	assert.Contains(t, greet.Code, "func Greet(name string) string")

	add, ok := byName["Add"]
	require.True(t, ok, "Add method should be chunked")
	assert.Equal(t, ChunkMethod, add.ChunkType)

	counter, ok := byName["Counter"]
	require.True(t, ok, "Counter type should be chunked")
	assert.Equal(t, ChunkType, counter.ChunkType)
}

func TestParsePythonBoundaries(t *testing.T) {
	c := New(Options{})
	defer c.Close()

	chunks := c.Parse(context.Background(), []byte(pySource), "python")
	require.NotEmpty(t, chunks)

	var types []string
	for _, ch := range chunks {
		types = append(types, ch.ChunkType)
	}
	assert.Contains(t, types, ChunkFunction)
	assert.Contains(t, types, ChunkClass)
}

func TestParseLineNumbersAreOneBased(t *testing.T) {
	c := New(Options{})
	defer c.Close()

	chunks := c.Parse(context.Background(), []byte(goSource), "go")
	require.NotEmpty(t, chunks)

	for _, ch := range chunks {
		assert.GreaterOrEqual(t, ch.StartLine, 1)
		assert.GreaterOrEqual(t, ch.EndLine, ch.StartLine)
	}
}

func TestParseDiscardsTinyNodes(t *testing.T) {
	src := "package p\n\nfunc a() {}\n"
	c := New(Options{MinChunkSize: 50})
	defer c.Close()

	chunks := c.Parse(context.Background(), []byte(src), "go")
	// The only declaration is below the minimum, so the walk yields
	// nothing and the line fallback takes over. The file itself is
	// below the minimum, so it becomes one whole-file chunk.
	require.Len(t, chunks, 1)
	assert.Equal(t, ChunkFile, chunks[0].ChunkType)
}

func TestParseSizeBounds(t *testing.T) {
	var b strings.Builder
	b.WriteString("package big\n\n")
	b.WriteString("func Large() {\n")
	for i := 0; i < 400; i++ {
		b.WriteString("\tprocess(\"some moderately long line of work here\")\n")
	}
	b.WriteString("}\n")

	c := New(Options{MinChunkSize: 50, MaxChunkSize: 2000})
	defer c.Close()

	chunks := c.Parse(context.Background(), []byte(b.String()), "go")
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Code), 2000)
		assert.GreaterOrEqual(t, len(ch.Code), 50)
	}
}

func TestParseUnsupportedLanguageFallsBack(t *testing.T) {
	content := strings.Repeat("some markdown text line\n", 20)
	c := New(Options{})
	defer c.Close()

	chunks := c.Parse(context.Background(), []byte(content), "markdown")
	require.NotEmpty(t, chunks)
	assert.Equal(t, ChunkLines, chunks[0].ChunkType)
	assert.Equal(t, 1, chunks[0].StartLine)
}

func TestParseEmptyContent(t *testing.T) {
	c := New(Options{})
	defer c.Close()

	assert.Nil(t, c.Parse(context.Background(), nil, "go"))
	assert.Nil(t, c.Parse(context.Background(), []byte("   \n  \n"), "markdown"))
}

func TestParseWholeFileBelowMinimum(t *testing.T) {
	c := New(Options{})
	defer c.Close()

	chunks := c.Parse(context.Background(), []byte("short file"), "markdown")
	require.Len(t, chunks, 1)
	assert.Equal(t, ChunkFile, chunks[0].ChunkType)
	assert.Equal(t, "short file", chunks[0].Code)
}

func TestChunkLinesSplitsAtMaximum(t *testing.T) {
	line := strings.Repeat("x", 90)
	content := strings.Repeat(line+"\n", 10)

	c := New(Options{MinChunkSize: 50, MaxChunkSize: 200})
	defer c.Close()

	chunks := c.chunkLines(content)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Code), 200)
		assert.GreaterOrEqual(t, len(ch.Code), 50)
	}
	// Chunks cover consecutive line ranges.
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].EndLine+1, chunks[i].StartLine)
	}
}

func TestParseIdempotent(t *testing.T) {
	c := New(Options{})
	defer c.Close()

	first := c.Parse(context.Background(), []byte(goSource), "go")
	second := c.Parse(context.Background(), []byte(goSource), "go")
	assert.Equal(t, first, second)
}

func TestRegistryGet(t *testing.T) {
	r := NewParserRegistry()

	for _, lang := range []string{"go", "typescript", "tsx", "javascript", "python"} {
		cfg, grammar, ok := r.Get(lang)
		require.True(t, ok, lang)
		assert.NotNil(t, grammar)
		assert.NotEmpty(t, cfg.BoundaryTypes)
	}

	_, _, ok := r.Get("cobol")
	assert.False(t, ok)
}
