package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func paths(records []FileRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Path
	}
	return out
}

func TestScan_FiltersAndPrunes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.py", "import os\n")
	writeFile(t, root, "pkg/util.py", "def f():\n    pass\n")
	writeFile(t, root, "web/index.ts", "export const x = 1;\n")
	writeFile(t, root, "README.md", "# readme\n")
	writeFile(t, root, "node_modules/dep/index.js", "module.exports = {};\n")
	writeFile(t, root, "venv/lib/site.py", "x = 1\n")
	writeFile(t, root, "pkg/__pycache__/util.py", "x = 1\n")
	writeFile(t, root, ".git/hooks/pre-commit.py", "x = 1\n")

	records, err := Scan(context.Background(), root, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"app.py", "pkg/util.py", "web/index.ts"}, paths(records))
}

func TestScan_Record(t *testing.T) {
	root := t.TempDir()
	content := "def a():\n    return 1\n\n\ndef b():\n    return 2"
	writeFile(t, root, "mod.py", content)

	records, err := Scan(context.Background(), root, Options{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "mod.py", r.Path)
	assert.Equal(t, filepath.Join(root, "mod.py"), r.AbsPath)
	assert.Equal(t, "python", r.Language)
	assert.Equal(t, content, r.Content)
	assert.Equal(t, 6, r.LineCount)
	assert.Equal(t, Fingerprint([]byte(content)), r.Fingerprint)
	assert.Len(t, r.Fingerprint, 64)
}

func TestScan_Deterministic(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"z.py", "a.py", "m/b.py", "m/a.py", "b.py"} {
		writeFile(t, root, name, "x = 1\n")
	}

	first, err := Scan(context.Background(), root, Options{})
	require.NoError(t, err)
	second, err := Scan(context.Background(), root, Options{})
	require.NoError(t, err)

	assert.Equal(t, paths(first), paths(second))
	assert.Equal(t, []string{"a.py", "b.py", "m/a.py", "m/b.py", "z.py"}, paths(first))
}

func TestScan_CustomExtensionsAndExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "x = 1\n")
	writeFile(t, root, "b.go", "package b\n")
	writeFile(t, root, "gen/c.py", "x = 1\n")
	writeFile(t, root, "build/d.py", "x = 1\n")

	records, err := Scan(context.Background(), root, Options{
		Extensions:  []string{"py"},
		ExcludeDirs: []string{"gen"},
	})
	require.NoError(t, err)

	// A configured exclude list replaces the defaults, so build/ is scanned.
	assert.Equal(t, []string{"a.py", "build/d.py"}, paths(records))
}

func TestScan_ExtraExcludesKeepDefaults(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "x = 1\n")
	writeFile(t, root, "tests/test_a.py", "x = 1\n")
	writeFile(t, root, "venv/lib/site.py", "x = 1\n")
	writeFile(t, root, "node_modules/dep/x.py", "x = 1\n")

	records, err := Scan(context.Background(), root, Options{ExtraExcludeDirs: []string{"tests"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py"}, paths(records))

	writeFile(t, root, "gen/b.py", "x = 1\n")
	records, err = Scan(context.Background(), root, Options{
		ExcludeDirs:      []string{"gen"},
		ExtraExcludeDirs: []string{"tests"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py", "node_modules/dep/x.py", "venv/lib/site.py"}, paths(records))
}

func TestScan_MemFs(t *testing.T) {
	fsys := afero.NewMemMapFs()
	root := "/work/proj"
	for _, dir := range []string{"venv", "vendored"} {
		require.NoError(t, fsys.MkdirAll(root+"/"+dir, 0o755))
	}
	require.NoError(t, afero.WriteFile(fsys, root+"/mod.py", []byte("def f():\n    pass\n"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, root+"/venv/x.py", []byte("x = 1\n"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, root+"/vendored/y.py", []byte("x = 1\n"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, root+"/"+IgnoreFile, []byte("vendored\n"), 0o644))

	records, err := Scan(context.Background(), root, Options{Fs: fsys})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "mod.py", records[0].Path)
	assert.Equal(t, 2, records[0].LineCount)

	require.NoError(t, afero.WriteFile(fsys, records[0].AbsPath, []byte("x = 1\n"), 0o644))
	fresh, err := Reload(fsys, records[0])
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.LineCount)

	_, err = os.Stat(root)
	assert.True(t, os.IsNotExist(err), "the OS filesystem is not touched")
}

func TestScan_IgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, IgnoreFile, "# generated code\nthird_party/vendored\nfixtures*\n")
	writeFile(t, root, "keep.py", "x = 1\n")
	writeFile(t, root, "third_party/vendored/lib.py", "x = 1\n")
	writeFile(t, root, "third_party/own/lib.py", "x = 1\n")
	writeFile(t, root, "fixtures_old/data.py", "x = 1\n")

	records, err := Scan(context.Background(), root, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"keep.py", "third_party/own/lib.py"}, paths(records))
}

func TestScan_DoesNotCreateIgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "x = 1\n")

	_, err := Scan(context.Background(), root, Options{})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, IgnoreFile))
	assert.True(t, os.IsNotExist(err))
}

func TestScan_SkipsInvalidUTF8AndEmpty(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "good.py", "x = 1\n")
	writeFile(t, root, "empty.py", "")
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.py"), []byte{0xff, 0xfe, 'x'}, 0o644))

	records, err := Scan(context.Background(), root, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"good.py"}, paths(records))
}

func TestScan_MissingRoot(t *testing.T) {
	_, err := Scan(context.Background(), filepath.Join(t.TempDir(), "nope"), Options{})
	assert.Error(t, err)
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, CountLines(""))
	assert.Equal(t, 1, CountLines("a"))
	assert.Equal(t, 1, CountLines("a\n"))
	assert.Equal(t, 2, CountLines("a\nb"))
	assert.Equal(t, 3, CountLines("a\n\nb\n"))
}

func TestLanguageOf(t *testing.T) {
	assert.Equal(t, "python", LanguageOf("x/y.py"))
	assert.Equal(t, "typescript", LanguageOf("y.TS"))
	assert.Equal(t, "go", LanguageOf("main.go"))
	assert.Equal(t, "unknown", LanguageOf("notes.txt"))
}

func TestReload(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.py")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0o644))

	recs, err := Scan(context.Background(), root, Options{})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	require.NoError(t, os.WriteFile(path, []byte("x = 1\ny = 2\n"), 0o644))
	fresh, err := Reload(afero.NewOsFs(), recs[0])
	require.NoError(t, err)
	assert.Equal(t, "a.py", fresh.Path)
	assert.Equal(t, 2, fresh.LineCount)
	assert.Equal(t, int64(12), fresh.Size)
	assert.NotEqual(t, recs[0].Fingerprint, fresh.Fingerprint)
}
