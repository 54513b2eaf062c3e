package chunker

import "fmt"

// Kind classifies a chunk.
type Kind string

const (
	KindClass    Kind = "class"
	KindMethod   Kind = "method"
	KindFunction Kind = "function"
	// KindType is only produced for index-only chunks of non-Python sources.
	KindType Kind = "type"
)

// Chunk is a named, line-addressed unit of source. Line numbers are 1-based,
// inclusive, and always refer to the file as it was when the chunk was
// extracted; once the file has been rewritten they are stale.
type Chunk struct {
	ID       string // dotted symbol path, e.g. "Foo.bar"
	Kind     Kind
	FilePath string
	Language string

	StartLine int
	EndLine   int
	// HeaderEndLine is the line holding the header's closing colon. It equals
	// StartLine unless the signature spans several lines.
	HeaderEndLine int
	// Inline is set when the body starts on the header line ("def f(): pass"),
	// which leaves no place for a docstring.
	Inline bool

	Code    string
	Parent  string
	Imports []string
	Summary string
}

// Key identifies a chunk across files.
func (c Chunk) Key() string {
	return c.FilePath + "::" + c.ID
}

// SyntaxError reports a file that did not parse cleanly.
type SyntaxError struct {
	Path string
	Line int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error in %s near line %d", e.Path, e.Line)
}
