package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/unmark/internal/codec"
	"github.com/MeKo-Tech/unmark/internal/pipeline"
)

// ErrNoImages is returned when the input names no supported image files.
var ErrNoImages = errors.New("no image files found")

// PlanJobs maps the configured input to (input, output) pairs.
//
// A file input goes to Output as given, into Output when it is an existing
// directory, or back onto itself when Output is empty. A directory input
// requires a directory Output (created if missing) and keeps relative paths;
// with no Output every file is processed in place.
func PlanJobs(cfg Config) ([]pipeline.Job, error) {
	if cfg.Input == "" {
		return nil, errors.New("no input given")
	}
	info, err := os.Stat(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", cfg.Input, err)
	}

	if !info.IsDir() {
		if !codec.IsSupported(cfg.Input) {
			return nil, fmt.Errorf("unsupported image format: %s", cfg.Input)
		}
		return []pipeline.Job{{Input: cfg.Input, Output: fileOutput(cfg)}}, nil
	}

	if cfg.Output != "" {
		if out, err := os.Stat(cfg.Output); err == nil && !out.IsDir() {
			return nil, fmt.Errorf("input %s is a directory but output %s is a file", cfg.Input, cfg.Output)
		}
	}

	files, err := discoverInDirectory(cfg.Input, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, cfg.Input)
	}

	return pipeline.JobsFor(files, func(in string) string {
		if cfg.Output == "" {
			return inPlace(in, cfg.Suffix)
		}
		rel, err := filepath.Rel(cfg.Input, in)
		if err != nil {
			rel = filepath.Base(in)
		}
		return codec.OutputName(filepath.Join(cfg.Output, rel))
	}), nil
}

func fileOutput(cfg Config) string {
	if cfg.Output == "" {
		return inPlace(cfg.Input, cfg.Suffix)
	}
	if out, err := os.Stat(cfg.Output); err == nil && out.IsDir() {
		return codec.OutputName(filepath.Join(cfg.Output, filepath.Base(cfg.Input)))
	}
	return cfg.Output
}

// inPlace returns the output for an input processed without -o.
func inPlace(path, suffix string) string {
	if suffix != "" {
		ext := filepath.Ext(path)
		path = strings.TrimSuffix(path, ext) + suffix + ext
	}
	return codec.OutputName(path)
}

// OutputFor maps a single discovered file into outDir, used by watch mode.
func OutputFor(inputDir, outDir, path, suffix string) string {
	if outDir == "" {
		return inPlace(path, suffix)
	}
	rel, err := filepath.Rel(inputDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	return codec.OutputName(filepath.Join(outDir, rel))
}
