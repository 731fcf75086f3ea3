package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/unmark/internal/batch"
	"github.com/MeKo-Tech/unmark/internal/codec"
	"github.com/MeKo-Tech/unmark/internal/pipeline"
	"github.com/spf13/cobra"
)

func (a *app) newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch -i <dir> -o <dir>",
		Short: "Remove the watermark from images as they appear in a directory",
		Long: `Watch a directory and remove the watermark from every supported image that is
created or rewritten in it. Each file is processed once it has been quiet for
the debounce interval. Runs until interrupted.

The output directory must differ from the input directory and must not be
inside it.

Examples:
  unmark watch -i ~/Downloads/generated -o ~/Pictures/clean
  unmark watch -i ./in -o ./out --recursive --debounce 1s`,
		Args: cobra.NoArgs,
		RunE: a.runWatch,
	}
	cmd.Flags().StringP("input", "i", "", "directory to watch (required)")
	cmd.Flags().StringP("output", "o", "", "directory for cleaned images (required)")
	cmd.Flags().BoolP("recursive", "r", false, "watch subdirectories too")
	cmd.Flags().StringSlice("include", nil, "file patterns to include")
	cmd.Flags().StringSlice("exclude", nil, "file patterns to exclude")
	cmd.Flags().Duration("debounce", batch.DefaultDebounce, "quiet period before a file is processed")
	cmd.Flags().Int("quality", 100, "JPEG output quality (1-100)")
	addCompositorFlags(cmd)
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, _ []string) error {
	cfg := a.config()
	flags := cmd.Flags()

	input, _ := flags.GetString("input")
	output, _ := flags.GetString("output")
	if err := checkWatchDirs(input, output); err != nil {
		return err
	}
	debounce, _ := flags.GetDuration("debounce")
	if debounce <= 0 {
		return fmt.Errorf("invalid debounce %s (must be positive)", debounce)
	}

	wc := batch.WatchConfig{
		Dir:             input,
		Recursive:       cfg.Batch.Recursive,
		IncludePatterns: cfg.Batch.Include,
		ExcludePatterns: cfg.Batch.Exclude,
		Debounce:        debounce,
		Logger:          a.log(),
	}
	if flags.Changed("recursive") {
		wc.Recursive, _ = flags.GetBool("recursive")
	}
	if flags.Changed("include") {
		wc.IncludePatterns, _ = flags.GetStringSlice("include")
	}
	if flags.Changed("exclude") {
		wc.ExcludePatterns, _ = flags.GetStringSlice("exclude")
	}
	quality := cfg.Output.Quality
	if flags.Changed("quality") {
		quality, _ = flags.GetInt("quality")
	}

	comp, opts, err := a.compositorFor(cmd)
	if err != nil {
		return err
	}
	proc, err := pipeline.NewProcessor(codec.Codec{Quality: quality}, pipeline.OpRemove,
		pipeline.RemoveTransform(comp, opts), a.log())
	if err != nil {
		return err
	}
	proc.WithSizeDetector(comp.Detector())

	out := cmd.OutOrStdout()
	var done, failed int
	start := time.Now()
	err = batch.Watch(cmd.Context(), wc, func(path string) {
		job := pipeline.Job{Input: path, Output: batch.OutputFor(input, output, path, "")}
		res := proc.ProcessOne(cmd.Context(), job)
		if res.Success {
			done++
			_, _ = fmt.Fprintf(out, "%s -> %s (%s)\n", res.Input, res.Output, res.Size)
			return
		}
		failed++
		_, _ = fmt.Fprintf(out, "%s: %s\n", res.Input, res.Message())
	})
	if err != nil {
		return err
	}
	a.log().Info("Watch stopped", "processed", done, "failed", failed,
		"uptime", time.Since(start).Round(time.Second).String())
	return nil
}

// checkWatchDirs rejects an output inside the watched tree, which would
// feed results back into the watcher.
func checkWatchDirs(input, output string) error {
	if input == "" || output == "" {
		return errors.New("watch needs both -i and -o")
	}
	in, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	out, err := filepath.Abs(output)
	if err != nil {
		return err
	}
	if in == out {
		return errors.New("output directory must differ from the watched directory")
	}
	if rel, err := filepath.Rel(in, out); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output directory %s is inside the watched directory %s", output, input)
	}
	return nil
}
