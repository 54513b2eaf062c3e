package chunker

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// LanguageSpec defines the tree-sitter grammar for a language and how its
// chunks are found.
type LanguageSpec struct {
	Language *sitter.Language
	// Structural marks languages chunked by the definition walker. Their
	// chunks are line-exact and can receive docstrings.
	Structural bool
	// Query is a tree-sitter S-expression query used for index-only chunking.
	// It must use @chunk for the outer node and @name for the identifier.
	Query      string
	Extensions []string
}

// Registry maps file extensions to language specs.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*LanguageSpec // extension (without dot) → spec
	names map[string]string        // extension (without dot) → language name
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		specs: make(map[string]*LanguageSpec),
		names: make(map[string]string),
	}
}

// Register adds a language spec under the given name.
func (r *Registry) Register(name string, spec *LanguageSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range spec.Extensions {
		r.specs[ext] = spec
		r.names[ext] = name
	}
}

// Lookup returns the spec and language name for a file path, or nil.
func (r *Registry) Lookup(path string) (*LanguageSpec, string) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[ext]
	if !ok {
		return nil, ""
	}
	return s, r.names[ext]
}

// LanguageName returns the language name for a file path, or "unknown".
func (r *Registry) LanguageName(path string) string {
	if _, lang := r.Lookup(path); lang != "" {
		return lang
	}
	return "unknown"
}

// Extensions returns all registered extensions with a leading dot.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.specs))
	for ext := range r.specs {
		exts = append(exts, "."+ext)
	}
	return exts
}
