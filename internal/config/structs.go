//nolint:lll
package config

// Config represents the complete configuration for unmark. It covers every
// command (remove, add, watch, serve) and is loaded from configuration files,
// environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Watermark geometry and compositing
	Watermark WatermarkConfig `mapstructure:"watermark" yaml:"watermark" json:"watermark"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// WatermarkConfig describes the mark and how it is inverted.
type WatermarkConfig struct {
	LogoValue    float64         `mapstructure:"logo_value" yaml:"logo_value" json:"logo_value"`
	AlphaCeiling float64         `mapstructure:"alpha_ceiling" yaml:"alpha_ceiling" json:"alpha_ceiling"`
	MinAlpha     float64         `mapstructure:"min_alpha" yaml:"min_alpha" json:"min_alpha"`
	Crossover    int             `mapstructure:"crossover" yaml:"crossover" json:"crossover"`
	Small        FootprintConfig `mapstructure:"small" yaml:"small" json:"small"`
	Large        FootprintConfig `mapstructure:"large" yaml:"large" json:"large"`
	// AlphaMap is an optional matte image used instead of the built-in ones.
	AlphaMap string `mapstructure:"alpha_map" yaml:"alpha_map" json:"alpha_map"`
}

// FootprintConfig is the geometry of one footprint variant in pixels.
type FootprintConfig struct {
	Width  int `mapstructure:"width" yaml:"width" json:"width"`
	Height int `mapstructure:"height" yaml:"height" json:"height"`
	Margin int `mapstructure:"margin" yaml:"margin" json:"margin"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Quality int    `mapstructure:"quality" yaml:"quality" json:"quality"`
	Format  string `mapstructure:"format" yaml:"format" json:"format"`
	Suffix  string `mapstructure:"suffix" yaml:"suffix" json:"suffix"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers   int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include   []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude   []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int64  `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig limits how much a single client may send.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxMBPerDay       int64 `mapstructure:"max_mb_per_day" yaml:"max_mb_per_day" json:"max_mb_per_day"`
}
