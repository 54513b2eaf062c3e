package languages

import (
	"docsmith/internal/chunker"

	"github.com/smacker/go-tree-sitter/python"
)

// RegisterPython registers Python for structural chunking.
func RegisterPython(r *chunker.Registry) {
	r.Register("python", &chunker.LanguageSpec{
		Language:   python.GetLanguage(),
		Structural: true,
		Query: `
			(function_definition name: (identifier) @name) @chunk
			(class_definition name: (identifier) @name) @chunk
		`,
		Extensions: []string{"py", "pyi"},
	})
}
