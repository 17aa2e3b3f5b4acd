package chunker

import (
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageConfig describes how one language is chunked.
type LanguageConfig struct {
	Name string
	// BoundaryTypes maps AST node types considered chunk boundaries
	// to the chunk type they produce.
	BoundaryTypes map[string]string
	// NameField is the tree-sitter field holding a boundary node's
	// declared name.
	NameField string
}

// ParserRegistry maps language names to their grammar and boundary
// configuration. It is an explicit value owned by the Chunker; an
// unregistered language is reported by Get, never panics.
type ParserRegistry struct {
	mu       sync.RWMutex
	configs  map[string]*LanguageConfig
	grammars map[string]*sitter.Language
}

// NewParserRegistry creates a registry with the default languages:
// go, typescript, tsx, javascript, jsx, python.
func NewParserRegistry() *ParserRegistry {
	r := &ParserRegistry{
		configs:  make(map[string]*LanguageConfig),
		grammars: make(map[string]*sitter.Language),
	}
	r.registerGo()
	r.registerTypeScript()
	r.registerJavaScript()
	r.registerPython()
	return r
}

// Get returns the configuration and grammar for a language name.
func (r *ParserRegistry) Get(name string) (*LanguageConfig, *sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[name]
	if !ok {
		return nil, nil, false
	}
	return cfg, r.grammars[name], true
}

// Languages returns the registered language names.
func (r *ParserRegistry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	return names
}

func (r *ParserRegistry) register(cfg *LanguageConfig, grammar *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[cfg.Name] = cfg
	r.grammars[cfg.Name] = grammar
}

func (r *ParserRegistry) registerGo() {
	r.register(&LanguageConfig{
		Name: "go",
		BoundaryTypes: map[string]string{
			"function_declaration": ChunkFunction,
			"method_declaration":   ChunkMethod,
			"type_declaration":     ChunkType,
			"const_declaration":    ChunkConst,
			"var_declaration":      ChunkVar,
		},
		NameField: "name",
	}, golang.GetLanguage())
}

func (r *ParserRegistry) registerTypeScript() {
	boundaries := map[string]string{
		"function_declaration":   ChunkFunction,
		"method_definition":      ChunkMethod,
		"class_declaration":      ChunkClass,
		"interface_declaration":  ChunkInterface,
		"type_alias_declaration": ChunkType,
		"enum_declaration":       ChunkType,
		"lexical_declaration":    ChunkConst,
		"variable_declaration":   ChunkVar,
	}

	r.register(&LanguageConfig{
		Name:          "typescript",
		BoundaryTypes: boundaries,
		NameField:     "name",
	}, typescript.GetLanguage())

	r.register(&LanguageConfig{
		Name:          "tsx",
		BoundaryTypes: boundaries,
		NameField:     "name",
	}, tsx.GetLanguage())
}

func (r *ParserRegistry) registerJavaScript() {
	boundaries := map[string]string{
		"function_declaration": ChunkFunction,
		"method_definition":    ChunkMethod,
		"class_declaration":    ChunkClass,
		"lexical_declaration":  ChunkConst,
		"variable_declaration": ChunkVar,
	}

	r.register(&LanguageConfig{
		Name:          "javascript",
		BoundaryTypes: boundaries,
		NameField:     "name",
	}, javascript.GetLanguage())
}

func (r *ParserRegistry) registerPython() {
	r.register(&LanguageConfig{
		Name: "python",
		BoundaryTypes: map[string]string{
			"function_definition": ChunkFunction,
			"class_definition":    ChunkClass,
		},
		NameField: "name",
	}, python.GetLanguage())
}
