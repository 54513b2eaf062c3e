package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"

	"docsmith/internal/logging"
)

// FileRecord is one source file read during a scan.
type FileRecord struct {
	Path        string // relative to the scan root, slash separated
	AbsPath     string
	Language    string
	Content     string
	Fingerprint string
	LineCount   int
	Size        int64
}

// Options configures a scan. Zero values select the defaults.
type Options struct {
	Extensions []string // with leading dot
	// ExcludeDirs replaces DefaultExcludeDirs when set.
	ExcludeDirs []string
	// ExtraExcludeDirs are pruned in addition to ExcludeDirs or the defaults.
	ExtraExcludeDirs []string
	// Language classifies a path; nil uses the built-in extension table.
	Language func(path string) string
	// Fs is the filesystem to scan; nil uses the OS filesystem.
	Fs     afero.Fs
	Logger *slog.Logger
}

// Scan walks root and returns every matching, readable file. Files that
// cannot be read are logged and skipped. The order is lexical by path.
func Scan(ctx context.Context, root string, opts Options) ([]FileRecord, error) {
	log := logging.OrDiscard(opts.Logger)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	info, err := fsys.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", absRoot)
	}

	exts := extensionSet(opts.Extensions)
	excludes := opts.ExcludeDirs
	if len(excludes) == 0 {
		excludes = DefaultExcludeDirs
	}
	excludes = append(append([]string(nil), excludes...), opts.ExtraExcludeDirs...)
	excludes = append(excludes, loadIgnorePatterns(fsys, absRoot)...)

	classify := opts.Language
	if classify == nil {
		classify = LanguageOf
	}

	warn := func(path string, err error) {
		log.Warn("skipping path", "path", path, "error", err)
	}

	entries, walkErr := walk(ctx, fsys, absRoot, exts, excludes, warn)

	var records []FileRecord
	for e := range entries {
		data, err := afero.ReadFile(fsys, e.path)
		if err != nil {
			warn(e.relPath, err)
			continue
		}
		if !utf8.Valid(data) {
			warn(e.relPath, fmt.Errorf("not valid UTF-8"))
			continue
		}
		content := string(data)
		records = append(records, FileRecord{
			Path:        e.relPath,
			AbsPath:     e.path,
			Language:    classify(e.path),
			Content:     content,
			Fingerprint: Fingerprint(data),
			LineCount:   CountLines(content),
			Size:        e.size,
		})
	}

	if err := <-walkErr; err != nil {
		return records, fmt.Errorf("walk %s: %w", absRoot, err)
	}
	return records, nil
}

// Reload re-reads a file from fsys, keeping its path and language.
func Reload(fsys afero.Fs, rec FileRecord) (FileRecord, error) {
	data, err := afero.ReadFile(fsys, rec.AbsPath)
	if err != nil {
		return rec, fmt.Errorf("reload %s: %w", rec.Path, err)
	}
	content := string(data)
	rec.Content = content
	rec.Fingerprint = Fingerprint(data)
	rec.LineCount = CountLines(content)
	rec.Size = int64(len(data))
	return rec, nil
}

// Fingerprint returns the hex SHA-256 of data.
func Fingerprint(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// CountLines counts lines the way a line splitter would: a trailing newline
// does not start a new line, and empty content has zero lines.
func CountLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

var languageByExt = map[string]string{
	".py":   "python",
	".pyi":  "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".go":   "go",
	".java": "java",
}

// LanguageOf classifies a path by extension, returning "unknown" when the
// extension is not recognised.
func LanguageOf(path string) string {
	if lang, ok := languageByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "unknown"
}

func extensionSet(exts []string) map[string]bool {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}
