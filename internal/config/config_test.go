package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxbrian/qx-converter/internal/ci"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qxconv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(ci.OutputEnv, "")

	cfg, err := Load("")
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want.InputDir, cfg.InputDir)
	assert.Equal(t, want.Extensions, cfg.Extensions)
	assert.Equal(t, want.Categories, cfg.Categories)
	assert.Equal(t, 30*time.Minute, cfg.Serve.ResultTTL)
	assert.Equal(t, OutputKeyAppName, cfg.OutputKey)
	assert.Empty(t, cfg.CIOutput)
}

func TestLoad_File(t *testing.T) {
	t.Setenv(ci.OutputEnv, "")
	path := writeConfig(t, `
input_dir: scripts/qx
loon_dir: out/loon
surge_dir: out/surge
extensions: [JS, .conf]
output_key: BaseName
categories:
  - keyword: VIP
    label: 👑会员
serve:
  addr: 127.0.0.1:9000
  result_ttl: 2h
watch:
  debounce: 1s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "scripts/qx", cfg.InputDir)
	assert.Equal(t, "out/loon", cfg.LoonDir)
	assert.Equal(t, []string{".js", ".conf"}, cfg.Extensions)
	assert.Equal(t, OutputKeyBaseName, cfg.OutputKey)
	assert.Equal(t, []Category{{Keyword: "VIP", Label: "👑会员"}}, cfg.Categories)
	assert.Equal(t, "127.0.0.1:9000", cfg.Serve.Addr)
	assert.Equal(t, 2*time.Hour, cfg.Serve.ResultTTL)
	assert.Equal(t, 256, cfg.Serve.CacheSize)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)

	opts := cfg.ConverterOptions()
	assert.True(t, opts.KeyByBaseName)
	require.Len(t, opts.Categories, 1)
	assert.Equal(t, "VIP", opts.Categories[0].Keyword)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "input_dir: from-file\n")
	t.Setenv("QXCONV_INPUT_DIR", "from-env")
	t.Setenv("QXCONV_SERVE_ADDR", ":9999")
	t.Setenv(ci.OutputEnv, "/tmp/gh-output")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.InputDir)
	assert.Equal(t, ":9999", cfg.Serve.Addr)
	assert.Equal(t, "/tmp/gh-output", cfg.CIOutput)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"bad output key", "output_key: title\n", "output_key"},
		{"empty input dir", "input_dir: \"\"\n", "input_dir is required"},
		{"category without label", "categories:\n  - keyword: x\n", "categories[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestWriteDefault(t *testing.T) {
	t.Setenv(ci.OutputEnv, "")
	path := filepath.Join(t.TempDir(), "qxconv.yaml")

	require.NoError(t, WriteDefault(path, false))
	assert.Error(t, WriteDefault(path, false), "existing file must not be overwritten")
	require.NoError(t, WriteDefault(path, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "result_ttl: 30m0s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Serve, cfg.Serve)
	assert.Equal(t, Default().Categories, cfg.Categories)
}
