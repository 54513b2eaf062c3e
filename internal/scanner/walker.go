package scanner

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// entry is a discovered file before it has been read.
type entry struct {
	path    string
	relPath string
	size    int64
}

// maxFileSize is the largest file we'll consider (1 MB).
const maxFileSize = 1 << 20

// IgnoreFile is read from the scan root when present. It is never created.
const IgnoreFile = ".docsmithignore"

// DefaultExcludeDirs are pruned when no exclude list is configured. Extra
// exclusions are added on top of them.
var DefaultExcludeDirs = []string{
	".git",
	".hg",
	".svn",
	"node_modules",
	"venv",
	".venv",
	"env",
	"dist",
	"build",
	"__pycache__",
	".idea",
	".vscode",
	".docsmith",
	".mypy_cache",
	".pytest_cache",
	".tox",
}

// DefaultExtensions is the include set used when none is configured.
var DefaultExtensions = []string{".py", ".js", ".ts", ".java", ".go"}

// walk traverses the tree rooted at absRoot and sends matching files on the
// returned channel in lexical order. Excluded directories are pruned before
// they are entered.
func walk(ctx context.Context, fsys afero.Fs, absRoot string, exts map[string]bool, excludes []string, warn func(string, error)) (<-chan entry, <-chan error) {
	files := make(chan entry, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(files)
		defer close(errs)

		err := afero.Walk(fsys, absRoot, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				if path == absRoot {
					return err
				}
				warn(path, err)
				if info != nil && info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			if info.IsDir() {
				if path == absRoot {
					return nil
				}
				rel, _ := filepath.Rel(absRoot, path)
				if matchesIgnore(info.Name(), filepath.ToSlash(rel), excludes) {
					return filepath.SkipDir
				}
				return nil
			}

			if info.Mode()&fs.ModeSymlink != 0 {
				return nil
			}

			if !exts[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			if info.Size() > maxFileSize || info.Size() == 0 {
				return nil
			}

			relPath, _ := filepath.Rel(absRoot, path)
			select {
			case files <- entry{path: path, relPath: filepath.ToSlash(relPath), size: info.Size()}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			errs <- err
		}
	}()

	return files, errs
}

// loadIgnorePatterns reads IgnoreFile from the root, if it exists.
func loadIgnorePatterns(fsys afero.Fs, root string) []string {
	f, err := fsys.Open(filepath.Join(root, IgnoreFile))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, strings.TrimSuffix(line, "/"))
	}
	return patterns
}

// matchesIgnore checks if a directory name or relative path matches any pattern.
func matchesIgnore(name, relPath string, patterns []string) bool {
	for _, p := range patterns {
		if name == p {
			return true
		}
		// Path prefix match on whole segments (e.g. "third_party/vendor").
		if strings.Contains(p, "/") && (relPath == p || strings.HasPrefix(relPath, p+"/")) {
			return true
		}
		if matched, _ := filepath.Match(p, relPath); matched {
			return true
		}
		if matched, _ := filepath.Match(p, name); matched {
			return true
		}
	}
	return false
}
