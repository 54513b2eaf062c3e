// Package injector writes generated summaries back into Python source as
// docstrings placed directly beneath each definition header.
package injector

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/afero"

	"docsmith/internal/chunker"
	"docsmith/internal/logging"
)

// Options configures an Injector.
type Options struct {
	// DryRun computes insertions and a diff without touching the file.
	DryRun bool
	// Fs defaults to the OS filesystem.
	Fs     afero.Fs
	Logger *slog.Logger
}

// Insertion is one docstring placed in a file. Line is the 1-based line the
// block occupies in the original numbering, i.e. HeaderEndLine + 1.
type Insertion struct {
	ChunkID string
	Line    int
	Block   string
}

// Result describes what happened to one file.
type Result struct {
	Path     string
	Injected int

	Documented int // already had a docstring
	NoSummary  int
	Inline     int // body on the header line
	Stale      int // chunk no longer matches the file

	Missing bool
	Written bool

	Insertions []Insertion
	// Diff is a unified diff of the rewrite, filled in dry-run mode.
	Diff string
}

// Skipped returns the number of chunks that were not injected.
func (r Result) Skipped() int {
	return r.Documented + r.NoSummary + r.Inline + r.Stale
}

// Injector rewrites files in place.
type Injector struct {
	dryRun bool
	fs     afero.Fs
	log    *slog.Logger
}

// New creates an Injector.
func New(opts Options) *Injector {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Injector{
		dryRun: opts.DryRun,
		fs:     fsys,
		log:    logging.OrDiscard(opts.Logger),
	}
}

// Inject inserts a docstring for every chunk that has a summary and no
// existing documentation. chunks must all come from a single scan of path;
// their line numbers are read against the file as it is now, so they must not
// have been used for an earlier injection.
//
// Chunks are applied bottom-up, so an insertion never shifts a line another
// chunk still refers to. The file is written once, atomically, and only when
// at least one docstring was added.
func (in *Injector) Inject(path string, chunks []chunker.Chunk) (Result, error) {
	res := Result{Path: path}

	data, err := afero.ReadFile(in.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		in.log.Warn("file vanished before injection", "path", path)
		res.Missing = true
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("read %s: %w", path, err)
	}

	original := string(data)
	lines := splitLines(original)

	ordered := slices.Clone(chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartLine > ordered[j].StartLine
	})

	for _, c := range ordered {
		block, ok := in.plan(&res, lines, c)
		if !ok {
			continue
		}
		at := headerEnd(c)
		header := lines[at-1]
		eol := lineEnding(header)
		if eol == "" {
			eol = "\n"
			lines[at-1] = header + eol
		}
		text := strings.Join(block, eol) + eol
		lines = slices.Insert(lines, at, text)

		res.Injected++
		res.Insertions = append(res.Insertions, Insertion{ChunkID: c.ID, Line: at + 1, Block: text})
	}

	if res.Injected == 0 {
		return res, nil
	}

	updated := strings.Join(lines, "")
	if in.dryRun {
		res.Diff = unifiedDiff(path, original, updated)
		return res, nil
	}
	if err := writeAtomic(in.fs, path, []byte(updated)); err != nil {
		return res, fmt.Errorf("write %s: %w", path, err)
	}
	res.Written = true
	in.log.Debug("injected docstrings", "path", path, "count", res.Injected)
	return res, nil
}

// plan runs the safety checks for one chunk and returns its docstring lines.
func (in *Injector) plan(res *Result, lines []string, c chunker.Chunk) ([]string, bool) {
	if Normalize(c.Summary) == "" {
		res.NoSummary++
		return nil, false
	}
	if c.Inline {
		res.Inline++
		in.log.Debug("skipping inline body", "path", res.Path, "chunk", c.ID)
		return nil, false
	}

	start := c.StartLine - 1
	at := headerEnd(c)
	if start < 0 || at > len(lines) || trimEOL(lines[start]) != firstLine(c.Code) {
		res.Stale++
		in.log.Warn("chunk does not match file, skipping", "path", res.Path, "chunk", c.ID, "line", c.StartLine)
		return nil, false
	}

	body := firstStatement(lines, at, c.EndLine)
	if body >= 0 && isDocstring(strings.TrimSpace(lines[body])) {
		res.Documented++
		return nil, false
	}

	return FormatDocstring(c.Summary, docIndent(lines, start, body)), true
}

// headerEnd returns the 1-based line of the header's colon, which is also the
// 0-based index a docstring is inserted at.
func headerEnd(c chunker.Chunk) int {
	if c.HeaderEndLine < c.StartLine {
		return c.StartLine
	}
	return c.HeaderEndLine
}

// firstStatement returns the index of the first line in [from, endLine) that
// is neither blank nor a comment, or -1.
func firstStatement(lines []string, from, endLine int) int {
	end := min(endLine, len(lines))
	for i := from; i < end; i++ {
		t := strings.TrimSpace(lines[i])
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		return i
	}
	return -1
}

// docIndent follows the body's own indentation when it nests under the
// header, and falls back to four spaces deeper than the header.
func docIndent(lines []string, start, body int) string {
	def := leadingSpace(lines[start])
	if body >= 0 {
		b := leadingSpace(lines[body])
		if len(b) > len(def) && strings.HasPrefix(b, def) {
			return b
		}
	}
	return def + "    "
}

func leadingSpace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

func firstLine(code string) string {
	if i := strings.IndexByte(code, '\n'); i >= 0 {
		return code[:i]
	}
	return code
}

func trimEOL(line string) string {
	return strings.TrimRight(line, "\r\n")
}

func lineEnding(line string) string {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return "\r\n"
	case strings.HasSuffix(line, "\n"):
		return "\n"
	default:
		return ""
	}
}

// splitLines splits s after every "\n", keeping the terminators.
func splitLines(s string) []string {
	var out []string
	for len(s) > 0 {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			out = append(out, s)
			break
		}
		out = append(out, s[:i+1])
		s = s[i+1:]
	}
	return out
}

func unifiedDiff(path, before, after string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + filepath.ToSlash(path),
		ToFile:   "b/" + filepath.ToSlash(path),
		Context:  2,
	})
	if err != nil {
		return ""
	}
	return diff
}
