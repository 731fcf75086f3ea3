package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/unmark/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigShowDefaults(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "config", "show")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	def := config.DefaultConfig()
	assert.Equal(t, def.LogLevel, cfg.LogLevel)
	assert.Equal(t, def.Watermark.Small, cfg.Watermark.Small)
	assert.Equal(t, def.Watermark.Large, cfg.Watermark.Large)
	assert.Equal(t, def.Watermark.Crossover, cfg.Watermark.Crossover)
	assert.InDelta(t, def.Watermark.LogoValue, cfg.Watermark.LogoValue, 1e-9)
	assert.InDelta(t, def.Watermark.AlphaCeiling, cfg.Watermark.AlphaCeiling, 1e-9)
	assert.Equal(t, def.Output, cfg.Output)
	assert.Equal(t, def.Server.Port, cfg.Server.Port)
	assert.Equal(t, def.Server.RateLimit, cfg.Server.RateLimit)
}

func TestConfigShowFileAndEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unmark.yaml"), []byte(`
watermark:
  logo_value: 200
output:
  suffix: _clean
`), 0o600))
	t.Setenv("UNMARK_SERVER_PORT", "9999")

	out, _, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# loaded from")

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.InDelta(t, 200.0, cfg.Watermark.LogoValue, 1e-9)
	assert.Equal(t, "_clean", cfg.Output.Suffix)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestConfigSuffixAppliesToRemove(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unmark.yaml"), []byte("output:\n  suffix: _clean\n"), 0o600))
	in := filepath.Join(dir, "photo.png")
	writeMarked(t, in)

	_, _, err := execute(t, "remove", in)
	require.NoError(t, err)
	requireRestored(t, filepath.Join(dir, "photo_clean.png"))
}

func TestConfigInvalidFileFails(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("watermark:\n  alpha_ceiling: 1.5\n"), 0o600))

	_, _, err := execute(t, "--config", path, "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestConfigInit(t *testing.T) {
	dir := isolate(t)

	out, _, err := execute(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "unmark.yaml")
	assert.FileExists(t, filepath.Join(dir, "unmark.yaml"))

	_, _, err = execute(t, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	custom := filepath.Join(dir, "custom.yaml")
	_, _, err = execute(t, "config", "init", custom)
	require.NoError(t, err)

	loaded, err := config.NewLoaderWithViper(viper.New()).LoadWithFile(custom)
	require.NoError(t, err)
	def := config.DefaultConfig()
	assert.Equal(t, def.Watermark.Small, loaded.Watermark.Small)
	assert.Equal(t, def.Server, loaded.Server)
	assert.Equal(t, def.Output, loaded.Output)
}
