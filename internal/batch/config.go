// Package batch turns file and directory arguments into pipeline jobs, runs
// them and formats the outcome.
package batch

import (
	"io"
	"log/slog"
	"time"
)

// Config holds all configuration for batch processing.
type Config struct {
	// Input is a file or directory; Output is a file, a directory or empty
	// for in-place processing.
	Input  string
	Output string

	// Suffix, when set and Output is empty, writes name<suffix>.ext next to
	// the input instead of overwriting it.
	Suffix string

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Parallel processing settings
	Workers int

	// Reporting settings
	Format           string
	ShowProgress     bool
	ShowStats        bool
	Quiet            bool
	ProgressInterval time.Duration
	ProgressWriter   io.Writer

	// Logger receives progress at debug level every ProgressLogEvery items.
	Logger           *slog.Logger
	ProgressLogEvery int
}

// DefaultConfig returns in-place, non-recursive text reporting.
func DefaultConfig() Config {
	return Config{
		Format:           "text",
		ProgressInterval: 100 * time.Millisecond,
		ProgressLogEvery: 25,
	}
}
