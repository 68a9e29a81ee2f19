package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrDirectoryEnumeration is returned when the input directory cannot be listed.
// It aborts the whole run.
var ErrDirectoryEnumeration = errors.New("cannot enumerate input directory")

// ListInputs returns the regular files in dir whose extension is in exts,
// in directory order. Extensions are compared case-insensitively.
func ListInputs(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDirectoryEnumeration, dir, err)
	}

	accept := make(map[string]bool, len(exts))
	for _, ext := range exts {
		accept[strings.ToLower(ext)] = true
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !accept[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

// BaseName returns the file name of path without its extension.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
