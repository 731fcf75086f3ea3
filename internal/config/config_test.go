package config

import (
	"strings"
	"testing"

	"github.com/MeKo-Tech/unmark/internal/watermark"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Watermark.LogoValue != watermark.DefaultLogoValue {
		t.Errorf("expected logo value %v, got %v", watermark.DefaultLogoValue, cfg.Watermark.LogoValue)
	}
	if cfg.Output.Quality != 100 {
		t.Errorf("expected quality 100, got %d", cfg.Output.Quality)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, "output format"},
		{"logo too high", func(c *Config) { c.Watermark.LogoValue = 256 }, "logo value"},
		{"logo negative", func(c *Config) { c.Watermark.LogoValue = -1 }, "logo value"},
		{"ceiling one", func(c *Config) { c.Watermark.AlphaCeiling = 1 }, "alpha ceiling"},
		{"ceiling zero", func(c *Config) { c.Watermark.AlphaCeiling = 0 }, "alpha ceiling"},
		{"min alpha above ceiling", func(c *Config) { c.Watermark.MinAlpha = 0.99 }, "min alpha"},
		{"crossover zero", func(c *Config) { c.Watermark.Crossover = 0 }, "crossover"},
		{"small width zero", func(c *Config) { c.Watermark.Small.Width = 0 }, "small footprint"},
		{"large margin negative", func(c *Config) { c.Watermark.Large.Margin = -1 }, "large margin"},
		{"quality zero", func(c *Config) { c.Output.Quality = 0 }, "quality"},
		{"quality high", func(c *Config) { c.Output.Quality = 101 }, "quality"},
		{"negative workers", func(c *Config) { c.Batch.Workers = -2 }, "workers"},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"port high", func(c *Config) { c.Server.Port = 70000 }, "port"},
		{"upload zero", func(c *Config) { c.Server.MaxUploadMB = 0 }, "upload"},
		{"timeout zero", func(c *Config) { c.Server.TimeoutSec = 0 }, "timeout"},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit.RequestsPerMinute = -1 }, "rate limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_UppercaseLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "DEBUG"
	if err := cfg.Validate(); err != nil {
		t.Errorf("log level should be case-insensitive: %v", err)
	}
}

func TestSizeDetector(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.SizeDetector(); got != watermark.DefaultSizeDetector() {
		t.Errorf("default config should give the default detector, got %+v", got)
	}

	cfg.Watermark.Crossover = 500
	cfg.Watermark.Large = FootprintConfig{Width: 60, Height: 50, Margin: 10}
	d := cfg.SizeDetector()
	if got := d.Detect(600, 600); got.Width != 60 || got.Height != 50 || got.Variant != watermark.Large {
		t.Errorf("unexpected large footprint %+v", got)
	}
}

func TestNewCompositor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watermark.LogoValue = 200
	comp, err := cfg.NewCompositor()
	if err != nil {
		t.Fatalf("NewCompositor: %v", err)
	}
	if comp.LogoValue() != 200 {
		t.Errorf("expected logo value 200, got %v", comp.LogoValue())
	}

	cfg.Watermark.AlphaCeiling = 2
	if _, err := cfg.NewCompositor(); err == nil {
		t.Error("expected error for invalid ceiling")
	}
}
