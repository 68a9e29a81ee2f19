package ci

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmit_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output")
	require.NoError(t, os.WriteFile(path, []byte("other=1\n"), 0o644))

	require.NoError(t, Emit(path, ChangesKey, true))
	require.NoError(t, Emit(path, ChangesKey, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "other=1\nhas_changes=true\nhas_changes=false\n", string(data))
}

func TestEmit_NoPath(t *testing.T) {
	assert.NoError(t, Emit("", ChangesKey, true))
}

func TestEmit_BadPath(t *testing.T) {
	err := Emit(filepath.Join(t.TempDir(), "missing", "output"), ChangesKey, true)
	assert.Error(t, err)
}

func TestDefaultOutput(t *testing.T) {
	t.Setenv(OutputEnv, "/tmp/gh-output")
	assert.Equal(t, "/tmp/gh-output", DefaultOutput())
}
