// Package languages registers the tree-sitter grammars docsmith understands.
package languages

import "docsmith/internal/chunker"

// Default returns a registry with every supported language. Only Python is
// chunked structurally; the rest are indexed by query.
func Default() *chunker.Registry {
	r := chunker.NewRegistry()
	RegisterPython(r)
	RegisterGo(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
	RegisterJava(r)
	return r
}
