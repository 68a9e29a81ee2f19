// Package publish writes converted artifacts only when their content changes.
package publish

import (
	"bytes"
	"errors"
	"fmt"
	"os"
)

// ErrUnwritableOutput is returned when an artifact cannot be written.
var ErrUnwritableOutput = errors.New("unwritable output")

// Save writes content to path unless the file already holds exactly that
// content. It reports whether the file changed. A missing or unreadable
// file counts as different content.
func Save(path, content string) (bool, error) {
	if !Changed(path, content) {
		return false, nil
	}

	if err := writeFile(path, []byte(content)); err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrUnwritableOutput, path, err)
	}
	return true, nil
}

// Changed reports whether writing content to path would change the file.
func Changed(path, content string) bool {
	existing, err := os.ReadFile(path)
	if err != nil {
		return true
	}
	return !bytes.Equal(existing, []byte(content))
}

// writeFile writes to a temp file first, then renames it into place.
func writeFile(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		os.Remove(tmpPath) // cleanup on failure
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // cleanup on failure
		return err
	}
	return nil
}

// Writer saves artifacts, optionally without touching the disk.
type Writer struct {
	// DryRun reports what would change but never writes.
	DryRun bool
}

// Save behaves like the package-level Save unless DryRun is set.
func (w Writer) Save(path, content string) (bool, error) {
	if w.DryRun {
		return Changed(path, content), nil
	}
	return Save(path, content)
}
