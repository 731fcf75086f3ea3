package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil || loader.GetViper() == nil {
		t.Fatal("NewLoader() returned no viper instance")
	}
}

func TestLoadWithNoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.Watermark.Small.Margin != 32 || cfg.Watermark.Large.Width != 96 {
		t.Errorf("unexpected footprint defaults: %+v", cfg.Watermark)
	}
}

func TestLoadWithValidYAMLFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "unmark.yaml")
	content := `
log_level: debug
watermark:
  logo_value: 240
  crossover: 800
  large:
    width: 72
output:
  quality: 85
  format: json
batch:
  workers: 3
  exclude: ["*_cleaned.*"]
server:
  port: 9090
`
	if err := os.WriteFile(configFile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	loader := NewLoaderWithViper(viper.New())
	cfg, err := loader.LoadWithFile(configFile)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.Watermark.LogoValue != 240 || cfg.Watermark.Crossover != 800 {
		t.Errorf("unexpected watermark config %+v", cfg.Watermark)
	}
	if cfg.Watermark.Large.Width != 72 || cfg.Watermark.Large.Height != 96 {
		t.Errorf("partial footprint override should keep defaults, got %+v", cfg.Watermark.Large)
	}
	if cfg.Output.Quality != 85 || cfg.Output.Format != "json" {
		t.Errorf("unexpected output config %+v", cfg.Output)
	}
	if cfg.Batch.Workers != 3 || len(cfg.Batch.Exclude) != 1 {
		t.Errorf("unexpected batch config %+v", cfg.Batch)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if loader.GetConfigFileUsed() != configFile {
		t.Errorf("expected config file %s, got %s", configFile, loader.GetConfigFileUsed())
	}
}

func TestLoadFromSearchPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, "unmark.yaml"), []byte("output:\n  quality: 70\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Output.Quality != 70 {
		t.Errorf("expected quality 70 from ./unmark.yaml, got %d", cfg.Output.Quality)
	}
}

func TestLoadWithInvalidValues(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "unmark.yaml")
	if err := os.WriteFile(configFile, []byte("watermark:\n  alpha_ceiling: 1.5\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := NewLoaderWithViper(viper.New()).LoadWithFile(configFile)
	if err == nil || !strings.Contains(err.Error(), "alpha ceiling") {
		t.Errorf("expected alpha ceiling validation error, got %v", err)
	}

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithoutValidation(configFile)
	if err != nil {
		t.Fatalf("LoadWithoutValidation() unexpected error: %v", err)
	}
	if cfg.Watermark.AlphaCeiling != 1.5 {
		t.Errorf("expected raw ceiling 1.5, got %v", cfg.Watermark.AlphaCeiling)
	}
}

func TestLoadWithMissingOrBrokenFile(t *testing.T) {
	_, err := NewLoaderWithViper(viper.New()).LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("expected error for missing file")
	}

	broken := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(broken, []byte("output: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLoaderWithViper(viper.New()).LoadWithFile(broken); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("UNMARK_WATERMARK_LOGO_VALUE", "220")
	t.Setenv("UNMARK_SERVER_PORT", "9999")
	t.Setenv("UNMARK_LOG_LEVEL", "warn")

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Watermark.LogoValue != 220 {
		t.Errorf("expected logo value 220 from env, got %v", cfg.Watermark.LogoValue)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999 from env, got %d", cfg.Server.Port)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected log level warn from env, got %s", cfg.LogLevel)
	}
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unmark.yaml")
	if err := GenerateDefaultConfigFile(path); err != nil {
		t.Fatalf("GenerateDefaultConfigFile: %v", err)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: test file
	if err != nil {
		t.Fatal(err)
	}
	var decoded Config
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("generated file is not valid YAML: %v", err)
	}
	if decoded.Watermark.Crossover != 1025 {
		t.Errorf("expected crossover 1025, got %d", decoded.Watermark.Crossover)
	}

	// The generated file loads back cleanly.
	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	if err != nil {
		t.Fatalf("loading generated file: %v", err)
	}
	if cfg.Output.Quality != 100 {
		t.Errorf("expected quality 100, got %d", cfg.Output.Quality)
	}

	if err := GenerateDefaultConfigFile(path); err == nil {
		t.Error("expected error when file exists")
	}
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	paths := GetConfigSearchPaths()
	if paths[0] != "." {
		t.Errorf("first search path should be '.', got %s", paths[0])
	}
	found := false
	for _, p := range paths {
		if p == filepath.Join("/tmp/xdg", "unmark") {
			found = true
		}
	}
	if !found {
		t.Errorf("XDG path missing from %v", paths)
	}
	if paths[len(paths)-1] != "/etc/unmark" {
		t.Errorf("last search path should be /etc/unmark, got %s", paths[len(paths)-1])
	}
}
