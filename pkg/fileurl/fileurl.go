package fileurl

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// FromPath returns the file:// URL of path when it names an existing regular file.
func FromPath(fs afero.Fs, path string) (string, bool) {
	info, err := fs.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}

	return "file://" + filepath.ToSlash(abs), true
}
