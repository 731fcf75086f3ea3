package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/unmark/internal/watermark"
)

var (
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validFormats   = []string{"text", "json", "csv"}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Watermark: WatermarkConfig{
			LogoValue:    watermark.DefaultLogoValue,
			AlphaCeiling: watermark.DefaultAlphaCeiling,
			MinAlpha:     watermark.DefaultMinAlpha,
			Crossover:    watermark.DefaultCrossover,
			Small:        footprintFrom(watermark.SmallSize),
			Large:        footprintFrom(watermark.LargeSize),
		},
		Output: OutputConfig{
			Quality: 100,
			Format:  "text",
		},
		Batch: BatchConfig{
			Workers: 0,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxMBPerDay:       1024,
			},
		},
	}
}

func footprintFrom(s watermark.WatermarkSize) FootprintConfig {
	return FootprintConfig{Width: s.Width, Height: s.Height, Margin: s.Margin}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	w := c.Watermark
	if w.LogoValue < 0 || w.LogoValue > 255 {
		return fmt.Errorf("invalid logo value: %.2f (must be between 0 and 255)", w.LogoValue)
	}
	if w.AlphaCeiling <= 0 || w.AlphaCeiling >= 1 {
		return fmt.Errorf("invalid alpha ceiling: %.4f (must be between 0 and 1, exclusive)", w.AlphaCeiling)
	}
	if w.MinAlpha < 0 || w.MinAlpha >= w.AlphaCeiling {
		return fmt.Errorf("invalid min alpha: %.4f (must be at least 0 and below the alpha ceiling)", w.MinAlpha)
	}
	if w.Crossover <= 0 {
		return fmt.Errorf("invalid crossover: %d (must be positive)", w.Crossover)
	}
	for name, f := range map[string]FootprintConfig{"small": w.Small, "large": w.Large} {
		if f.Width <= 0 || f.Height <= 0 {
			return fmt.Errorf("invalid %s footprint: %dx%d (must be positive)", name, f.Width, f.Height)
		}
		if f.Margin < 0 {
			return fmt.Errorf("invalid %s margin: %d (must not be negative)", name, f.Margin)
		}
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("invalid quality: %d (must be between 1 and 100)", c.Output.Quality)
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("invalid batch workers: %d (must not be negative)", c.Batch.Workers)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if rl := c.Server.RateLimit; rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 || rl.MaxMBPerDay < 0 {
		return errors.New("invalid rate limit: limits must not be negative (0 disables a limit)")
	}
	return nil
}

// SizeDetector builds the footprint detector from the watermark settings.
func (c *Config) SizeDetector() watermark.SizeDetector {
	w := c.Watermark
	return watermark.SizeDetector{
		Crossover: w.Crossover,
		Small:     watermark.WatermarkSize{Variant: watermark.Small, Width: w.Small.Width, Height: w.Small.Height, Margin: w.Small.Margin},
		Large:     watermark.WatermarkSize{Variant: watermark.Large, Width: w.Large.Width, Height: w.Large.Height, Margin: w.Large.Margin},
	}
}

// NewCompositor builds a compositor from the watermark settings.
func (c *Config) NewCompositor() (*watermark.Compositor, error) {
	return watermark.NewCompositor(
		watermark.WithLogoValue(c.Watermark.LogoValue),
		watermark.WithAlphaCeiling(c.Watermark.AlphaCeiling),
		watermark.WithMinAlpha(c.Watermark.MinAlpha),
		watermark.WithSizeDetector(c.SizeDetector()),
	)
}
