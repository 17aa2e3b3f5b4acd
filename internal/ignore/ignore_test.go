package ignore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Match_SimplePatterns(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		path     string
		expected bool
	}{
		{name: "exact filename match", pattern: "foo.txt", path: "foo.txt", expected: true},
		{name: "exact filename no match", pattern: "foo.txt", path: "bar.txt", expected: false},
		{name: "filename in subdir", pattern: "foo.txt", path: "src/foo.txt", expected: true},
		{name: "filename deep nested", pattern: "foo.txt", path: "a/b/c/foo.txt", expected: true},
		{name: "directory name prunes contents", pattern: "node_modules", path: "node_modules/react/index.js", expected: true},
		{name: "directory name at depth", pattern: "node_modules", path: "web/node_modules/react/index.js", expected: true},
		{name: "no partial component match", pattern: "dist", path: "distance/calc.go", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.Add(tt.pattern)
			assert.Equal(t, tt.expected, m.Match(tt.path))
		})
	}
}

func TestMatcher_Match_WildcardPatterns(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		path     string
		expected bool
	}{
		{name: "*.log matches .log", pattern: "*.log", path: "error.log", expected: true},
		{name: "*.log matches nested .log", pattern: "*.log", path: "logs/error.log", expected: true},
		{name: "*.log no match .txt", pattern: "*.log", path: "error.txt", expected: false},
		{name: "star does not cross separators", pattern: "src/*.js", path: "src/lib/app.js", expected: false},
		{name: "star within one level", pattern: "src/*.js", path: "src/app.js", expected: true},
		{name: "double star crosses separators", pattern: "src/**/*.js", path: "src/a/b/app.js", expected: true},
		{name: "double star zero dirs", pattern: "src/**/*.js", path: "src/app.js", expected: true},
		{name: "question mark single char", pattern: "file?.txt", path: "file1.txt", expected: true},
		{name: "question mark two chars", pattern: "file?.txt", path: "file12.txt", expected: false},
		{name: "character class", pattern: "file[0-9].txt", path: "file7.txt", expected: true},
		{name: "character class no match", pattern: "file[0-9].txt", path: "fileA.txt", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.Add(tt.pattern)
			assert.Equal(t, tt.expected, m.Match(tt.path))
		})
	}
}

func TestMatcher_Negation_LastMatchWins(t *testing.T) {
	t.Run("later negation un-excludes", func(t *testing.T) {
		m := New()
		m.AddPatterns([]string{"*.log", "!keep.log"})

		assert.True(t, m.Match("other.log"))
		assert.False(t, m.Match("keep.log"))
	})

	t.Run("later broad pattern re-excludes", func(t *testing.T) {
		m := New()
		m.AddPatterns([]string{"*.log", "!keep.log", "logs/**"})

		assert.True(t, m.Match("logs/keep.log"), "re-excluded by later rule")
		assert.False(t, m.Match("keep.log"), "negation still holds outside logs/")
	})

	t.Run("negation without prior match leaves path included", func(t *testing.T) {
		m := New()
		m.Add("!free.txt")
		assert.False(t, m.Match("free.txt"))
	})
}

func TestMatcher_AnchoredPatterns(t *testing.T) {
	m := New()
	m.Add("/build")

	assert.True(t, m.Match("build/out.o"))
	assert.True(t, m.Match("build"))
	assert.False(t, m.Match("src/build/out.o"), "leading slash anchors to root")
}

func TestMatcher_SkipsCommentsAndBlankLines(t *testing.T) {
	m := New()
	m.AddPatterns([]string{"", "# comment", "   ", "*.tmp"})

	assert.Equal(t, 1, m.Len())
	assert.True(t, m.Match("a.tmp"))
}

func TestMatcher_AddFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	content := "# build output\ndist/\n*.log\n!important.log\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	m := New()
	require.NoError(t, m.AddFromFile(path))

	assert.True(t, m.Match("dist/bundle.js"))
	assert.True(t, m.Match("debug.log"))
	assert.False(t, m.Match("important.log"))
}

func TestMatcher_AddFromFile_Missing(t *testing.T) {
	m := New()
	err := m.AddFromFile(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestMatcher_ConcurrentAccess(t *testing.T) {
	m := New()
	m.Add("*.log")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.Match("a/b/c.log")
			}
		}()
	}
	wg.Wait()
}
