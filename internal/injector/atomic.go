package injector

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// writeAtomic replaces path with data through a temp file in the same
// directory, so readers see either the old or the new content.
func writeAtomic(fsys afero.Fs, path string, data []byte) (err error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return err
	}

	tmp, err := afero.TempFile(fsys, filepath.Dir(path), "."+filepath.Base(path)+".docsmith-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = fsys.Remove(name)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = fsys.Chmod(name, info.Mode().Perm()); err != nil {
		return err
	}
	return fsys.Rename(name, path)
}
