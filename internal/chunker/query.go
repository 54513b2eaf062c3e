package chunker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"docsmith/internal/scanner"
)

// ErrUnsupported is returned for files with no registered grammar, or for
// structural chunking of a language that only supports query chunking.
var ErrUnsupported = errors.New("unsupported language")

// Chunker parses source files with tree-sitter and extracts chunks.
type Chunker struct {
	registry *Registry
}

// New creates a chunker backed by the given registry.
func New(r *Registry) *Chunker {
	return &Chunker{registry: r}
}

// Registry returns the language registry the chunker was built with.
func (c *Chunker) Registry() *Registry { return c.registry }

// Chunk extracts class, method and function chunks from a structurally
// supported file. A file that does not parse cleanly yields no chunks and a
// *SyntaxError.
func (c *Chunker) Chunk(file scanner.FileRecord) ([]Chunk, error) {
	spec, _ := c.registry.Lookup(file.Path)
	if spec == nil || !spec.Structural {
		return nil, fmt.Errorf("chunk %s: %w", file.Path, ErrUnsupported)
	}

	src := []byte(file.Content)
	tree, err := parse(spec, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", file.Path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		line := 1
		if bad := firstError(root); bad != nil {
			line = int(bad.StartPoint().Row) + 1
		}
		return nil, &SyntaxError{Path: file.Path, Line: line}
	}

	w := newPyWalker(file, src)
	w.visit(root, nil)
	return w.chunks, nil
}

// ChunkForIndex extracts top-level definitions with the language's query.
// These chunks feed the search index only and are never rewritten.
func (c *Chunker) ChunkForIndex(file scanner.FileRecord) ([]Chunk, error) {
	spec, _ := c.registry.Lookup(file.Path)
	if spec == nil || spec.Query == "" {
		return nil, fmt.Errorf("chunk %s: %w", file.Path, ErrUnsupported)
	}

	src := []byte(file.Content)
	tree, err := parse(spec, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", file.Path, err)
	}
	defer tree.Close()

	q, err := sitter.NewQuery([]byte(spec.Query), spec.Language)
	if err != nil {
		return nil, fmt.Errorf("compile query for %s: %w", file.Language, err)
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	var captures []capture
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var chunkNode, nameNode *sitter.Node
		for _, cap := range m.Captures {
			switch q.CaptureNameForId(cap.Index) {
			case "chunk":
				chunkNode = cap.Node
			case "name":
				nameNode = cap.Node
			}
		}
		if chunkNode == nil {
			continue
		}
		kindNode := chunkNode.Type()
		var name string
		if nameNode != nil {
			name = nameNode.Content(src)
			if p := nameNode.Parent(); p != nil {
				kindNode = p.Type()
			}
		}
		captures = append(captures, capture{
			name:      name,
			kind:      kindFromNode(kindNode),
			startLine: int(chunkNode.StartPoint().Row) + 1,
			endLine:   int(chunkNode.EndPoint().Row) + 1,
			startByte: chunkNode.StartByte(),
			endByte:   chunkNode.EndByte(),
		})
	}

	// When captures overlap, keep only the outer (larger) node.
	captures = dedup(captures)

	lines := strings.Split(file.Content, "\n")
	seen := make(map[string]bool)
	chunks := make([]Chunk, 0, len(captures))
	for _, cap := range captures {
		id := cap.name
		if id == "" {
			id = string(cap.kind)
		}
		if seen[id] {
			id = fmt.Sprintf("%s#L%d", id, cap.startLine)
		}
		seen[id] = true

		chunks = append(chunks, Chunk{
			ID:            id,
			Kind:          cap.kind,
			FilePath:      file.Path,
			Language:      file.Language,
			StartLine:     cap.startLine,
			EndLine:       cap.endLine,
			HeaderEndLine: cap.startLine,
			Code:          sliceLines(lines, cap.startLine, cap.endLine),
		})
	}
	return chunks, nil
}

func parse(spec *LanguageSpec, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(spec.Language)
	return parser.ParseCtx(context.Background(), nil, src)
}

func kindFromNode(nodeType string) Kind {
	switch {
	case strings.Contains(nodeType, "method"):
		return KindMethod
	case strings.Contains(nodeType, "class"):
		return KindClass
	case strings.Contains(nodeType, "interface"),
		strings.Contains(nodeType, "type"),
		strings.Contains(nodeType, "enum"):
		return KindType
	default:
		return KindFunction
	}
}

// dedup removes captures that are fully contained within a larger capture.
func dedup(caps []capture) []capture {
	if len(caps) <= 1 {
		return caps
	}
	// Sort by start byte ascending, then by size descending (larger first).
	sort.Slice(caps, func(i, j int) bool {
		if caps[i].startByte != caps[j].startByte {
			return caps[i].startByte < caps[j].startByte
		}
		return (caps[i].endByte - caps[i].startByte) > (caps[j].endByte - caps[j].startByte)
	})

	var result []capture
	var lastEnd uint32
	for _, c := range caps {
		if c.startByte >= lastEnd || lastEnd == 0 {
			result = append(result, c)
			if c.endByte > lastEnd {
				lastEnd = c.endByte
			}
		}
	}
	return result
}

func sliceLines(lines []string, startLine, endLine int) string {
	start := startLine - 1
	end := endLine
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}
	out := make([]string, 0, end-start)
	for _, l := range lines[start:end] {
		out = append(out, strings.TrimSuffix(l, "\r"))
	}
	return strings.Join(out, "\n")
}

type capture struct {
	name      string
	kind      Kind
	startLine int
	endLine   int
	startByte uint32
	endByte   uint32
}
