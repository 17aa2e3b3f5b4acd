// Package ignore provides glob-style path exclusion with negation.
// Patterns compile to regular expressions matched against a path at any
// directory boundary. Rules are evaluated in the order they were added
// and the last matching rule wins, so a later "!pattern" can un-exclude
// a path excluded by an earlier rule.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Matcher holds compiled ignore patterns and provides thread-safe matching.
type Matcher struct {
	mu    sync.RWMutex
	rules []rule
}

// rule is a single compiled ignore pattern.
type rule struct {
	pattern  string
	regex    *regexp.Regexp
	negation bool
}

// New creates an empty Matcher.
func New() *Matcher {
	return &Matcher{}
}

// Add appends a pattern to the matcher. Empty lines and comment lines
// (leading #) are silently skipped so gitignore-style files can be fed
// through unfiltered.
func (m *Matcher) Add(pattern string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	r := rule{pattern: pattern}
	if strings.HasPrefix(pattern, "!") {
		r.negation = true
		pattern = strings.TrimPrefix(pattern, "!")
	}

	// Trailing slash means "directory"; dropping it lets the boundary
	// anchor below match the directory and everything beneath it.
	pattern = strings.TrimSuffix(pattern, "/")
	// Leading slash anchors to the project root.
	anchored := strings.HasPrefix(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "/")

	body := globToRegex(pattern)
	var expr string
	if anchored {
		expr = "^" + body + "(?:$|/)"
	} else {
		// Match at any directory boundary within the path.
		expr = "(?:^|/)" + body + "(?:$|/)"
	}
	r.regex = regexp.MustCompile(expr)

	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
}

// AddPatterns appends each pattern in order.
func (m *Matcher) AddPatterns(patterns []string) {
	for _, p := range patterns {
		m.Add(p)
	}
}

// AddFromFile reads patterns from an ignore file, one per line.
func (m *Matcher) AddFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open ignore file: %w", err)
	}
	defer func() { _ = f.Close() }()

	s := bufio.NewScanner(f)
	for s.Scan() {
		m.Add(s.Text())
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("read ignore file: %w", err)
	}
	return nil
}

// Len returns the number of compiled rules.
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// Match reports whether the path is excluded. The path is normalized to
// forward slashes before matching. Rules apply in order added; the last
// matching rule decides.
func (m *Matcher) Match(path string) bool {
	path = filepath.ToSlash(path)
	path = strings.TrimPrefix(path, "./")

	m.mu.RLock()
	defer m.mu.RUnlock()

	ignored := false
	for _, r := range m.rules {
		if r.regex.MatchString(path) {
			ignored = !r.negation
		}
	}
	return ignored
}

// globToRegex converts one glob pattern to a regex body. "**" crosses
// directory separators, "*" and "?" do not.
func globToRegex(pattern string) string {
	var b strings.Builder

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					// "**/" matches zero or more directories.
					b.WriteString("(?:[^/]+/)*")
					i += 3
					continue
				}
				b.WriteString(".*")
				i += 2
				continue
			}
			b.WriteString("[^/]*")
			i++
		case '?':
			b.WriteString("[^/]")
			i++
		case '[':
			// Character class passes through if closed, otherwise literal.
			j := i + 1
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j < len(pattern) {
				b.WriteString(pattern[i : j+1])
				i = j + 1
			} else {
				b.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}

	return b.String()
}
