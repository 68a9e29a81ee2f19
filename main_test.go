package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxbrian/qx-converter/internal/batch"
	"github.com/xxxbrian/qx-converter/internal/config"
)

const wyy = `/*
📜 ✨ 网易云音乐 ✨
^https?:\/\/interface\.music\.163\.com\/eapi\/vip url script-response-body https://s/wyy.js
hostname = interface.music.163.com
*/
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	c := config.Default()
	c.InputDir = filepath.Join(root, "QuantumultX")
	c.LoonDir = filepath.Join(root, "Loon", "plugins")
	c.SurgeDir = filepath.Join(root, "Surge", "modules")
	require.NoError(t, os.MkdirAll(c.InputDir, 0o755))
	return c
}

func TestRunConvert_WritesThenSettles(t *testing.T) {
	c := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(c.InputDir, "wyy.js"), []byte(wyy), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(c.InputDir, "empty.js"), []byte(""), 0o644))

	var out bytes.Buffer
	sum, err := runConvert(context.Background(), c, false, &out)
	require.NoError(t, err)
	assert.True(t, sum.AnyChanged)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 1, sum.Failed)
	assert.FileExists(t, filepath.Join(c.LoonDir, "网易云音乐.plugin"))
	assert.FileExists(t, filepath.Join(c.SurgeDir, "网易云音乐.sgmodule"))
	assert.Contains(t, out.String(), "has_changes=true")

	out.Reset()
	sum, err = runConvert(context.Background(), c, false, &out)
	require.NoError(t, err)
	assert.False(t, sum.AnyChanged)
	assert.Contains(t, out.String(), "has_changes=false")
}

func TestRunConvert_DryRunWritesNothing(t *testing.T) {
	c := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(c.InputDir, "wyy.js"), []byte(wyy), 0o644))

	var out bytes.Buffer
	sum, err := runConvert(context.Background(), c, true, &out)
	require.NoError(t, err)
	assert.True(t, sum.AnyChanged)
	assert.NoDirExists(t, c.LoonDir)
	assert.Contains(t, out.String(), "DRY RUN")
}

func TestRunConvert_MissingInputDir(t *testing.T) {
	c := testConfig(t)
	c.InputDir = filepath.Join(c.InputDir, "missing")

	_, err := runConvert(context.Background(), c, false, &bytes.Buffer{})
	assert.ErrorIs(t, err, batch.ErrDirectoryEnumeration)
}

func TestApplyConvertFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("input", "", "")
	cmd.Flags().String("loon", "", "")
	cmd.Flags().String("surge", "", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--input", "in", "--surge", "out"}))

	c := config.Default()
	applyConvertFlags(cmd, c)
	assert.Equal(t, "in", c.InputDir)
	assert.Equal(t, "out", c.SurgeDir)
	assert.Equal(t, config.Default().LoonDir, c.LoonDir)
}
