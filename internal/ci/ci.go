// Package ci forwards the run result to the CI pipeline through an
// append-only key=value output file such as $GITHUB_OUTPUT.
package ci

import (
	"fmt"
	"os"
)

// ChangesKey is the output key consumed by the publish step.
const ChangesKey = "has_changes"

// OutputEnv names the environment variable holding the default output path.
const OutputEnv = "GITHUB_OUTPUT"

// DefaultOutput returns the output file configured by the CI runner, if any.
func DefaultOutput() string {
	return os.Getenv(OutputEnv)
}

// Emit appends key=true|false to the file at path. An empty path is a no-op.
func Emit(path, key string, value bool) error {
	if path == "" {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open CI output %s: %w", path, err)
	}
	if _, err := fmt.Fprintf(f, "%s=%t\n", key, value); err != nil {
		f.Close()
		return fmt.Errorf("failed to write CI output: %w", err)
	}
	return f.Close()
}
