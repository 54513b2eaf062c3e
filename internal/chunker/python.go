package chunker

import (
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"docsmith/internal/scanner"
)

// pyWalker collects definitions from a Python syntax tree. The enclosing
// class path is passed down explicitly; only the import set accumulates.
type pyWalker struct {
	file    scanner.FileRecord
	src     []byte
	lines   []string
	imports map[string]struct{}
	chunks  []Chunk
}

func newPyWalker(file scanner.FileRecord, src []byte) *pyWalker {
	lines := strings.Split(file.Content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return &pyWalker{
		file:    file,
		src:     src,
		lines:   lines,
		imports: make(map[string]struct{}),
	}
}

func (w *pyWalker) visit(n *sitter.Node, scope []string) {
	switch n.Type() {
	case "import_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "dotted_name":
				w.addImport(child.Content(w.src))
			case "aliased_import":
				if name := child.ChildByFieldName("name"); name != nil {
					w.addImport(name.Content(w.src))
				}
			}
		}
		return

	case "import_from_statement":
		// "from . import x" has no module name and records nothing.
		if mod := n.ChildByFieldName("module_name"); mod != nil {
			w.addImport(strings.TrimLeft(mod.Content(w.src), "."))
		}
		return

	case "future_import_statement":
		w.addImport("__future__")
		return

	case "class_definition":
		name := w.nameOf(n)
		if name == "" {
			return
		}
		w.emit(n, KindClass, name, scope)
		inner := append(append([]string(nil), scope...), name)
		if body := n.ChildByFieldName("body"); body != nil {
			w.visitChildren(body, inner)
		}
		return

	case "function_definition":
		name := w.nameOf(n)
		if name == "" {
			return
		}
		kind := KindFunction
		if len(scope) > 0 {
			kind = KindMethod
		}
		// Function bodies are atomic: nested defs stay inside this chunk.
		w.emit(n, kind, name, scope)
		return
	}

	w.visitChildren(n, scope)
}

func (w *pyWalker) visitChildren(n *sitter.Node, scope []string) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.visit(n.NamedChild(i), scope)
	}
}

func (w *pyWalker) nameOf(n *sitter.Node) string {
	name := n.ChildByFieldName("name")
	if name == nil {
		return ""
	}
	return name.Content(w.src)
}

func (w *pyWalker) addImport(name string) {
	name = strings.TrimSpace(name)
	if name != "" {
		w.imports[name] = struct{}{}
	}
}

func (w *pyWalker) snapshotImports() []string {
	out := make([]string, 0, len(w.imports))
	for name := range w.imports {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (w *pyWalker) emit(n *sitter.Node, kind Kind, name string, scope []string) {
	start := int(n.StartPoint().Row)
	end := int(n.EndPoint().Row)
	if n.EndPoint().Column == 0 && end > start {
		end--
	}
	if end >= len(w.lines) {
		end = len(w.lines) - 1
	}

	headerEnd, inline := header(n)

	parent := strings.Join(scope, ".")
	id := name
	if parent != "" {
		id = parent + "." + name
	}

	w.chunks = append(w.chunks, Chunk{
		ID:            id,
		Kind:          kind,
		FilePath:      w.file.Path,
		Language:      w.file.Language,
		StartLine:     start + 1,
		EndLine:       end + 1,
		HeaderEndLine: headerEnd + 1,
		Inline:        inline,
		Code:          strings.Join(w.lines[start:end+1], "\n"),
		Parent:        parent,
		Imports:       w.snapshotImports(),
	})
}

// header returns the row of the definition's own colon and whether the body
// begins on that same row.
func header(n *sitter.Node) (int, bool) {
	body := n.ChildByFieldName("body")
	colonRow := int(n.StartPoint().Row)
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if body != nil && c.StartByte() >= body.StartByte() {
			break
		}
		if c.Type() == ":" {
			colonRow = int(c.StartPoint().Row)
		}
	}
	if body == nil {
		return colonRow, true
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmt := body.NamedChild(i)
		if stmt.Type() == "comment" {
			continue
		}
		return colonRow, int(stmt.StartPoint().Row) == colonRow
	}
	return colonRow, true
}

// firstError returns the first ERROR or MISSING node under n.
func firstError(n *sitter.Node) *sitter.Node {
	if n.IsMissing() || n.Type() == "ERROR" {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.HasError() || child.IsMissing() {
			if found := firstError(child); found != nil {
				return found
			}
		}
	}
	return nil
}
