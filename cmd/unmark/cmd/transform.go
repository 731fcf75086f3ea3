package cmd

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/unmark/internal/batch"
	"github.com/MeKo-Tech/unmark/internal/codec"
	"github.com/MeKo-Tech/unmark/internal/pipeline"
	"github.com/spf13/cobra"
)

func (a *app) newRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove [-i] <path> [-o <path>]",
		Short: "Remove the watermark from an image or a directory of images",
		Long: `Remove the watermark from a single image or every image in a directory.

Without -o the input is overwritten in place (or written next to it when
--suffix is set). A directory input requires a directory output.

Examples:
  unmark remove photo.png
  unmark remove -i photo.png -o clean.png
  unmark remove -i ./generated -o ./clean --recursive --workers 4 --stats
  unmark remove -i ./generated --suffix _clean --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTransform(cmd, args, pipeline.OpRemove)
		},
	}
	addTransformFlags(cmd)
	return cmd
}

func (a *app) newAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [-i] <path> -o <path>",
		Short: "Composite the watermark onto an image or a directory of images",
		Long: `Composite the watermark onto images, producing the same result as the
generator that stamped the original mark. Useful for building test fixtures.

An output (-o or --suffix) is required so the source images are kept.

Examples:
  unmark add -i clean.png -o marked.png
  unmark add -i ./clean -o ./marked --size large`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTransform(cmd, args, pipeline.OpAdd)
		},
	}
	addTransformFlags(cmd)
	return cmd
}

// addTransformFlags registers the flags shared by remove, add and the root
// shortcut.
func addTransformFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("input", "i", "", "input image file or directory")
	cmd.Flags().StringP("output", "o", "", "output file or directory (default: overwrite input)")
	addCompositorFlags(cmd)
	cmd.Flags().Int("quality", 100, "JPEG output quality (1-100)")
	cmd.Flags().Int("workers", 0, "number of parallel workers (0 = number of CPUs)")
	cmd.Flags().BoolP("recursive", "r", false, "process directories recursively")
	cmd.Flags().StringSlice("include", nil, "file patterns to include (e.g. '*.png,*.jpg')")
	cmd.Flags().StringSlice("exclude", nil, "file patterns to exclude (e.g. '*_clean.*')")
	cmd.Flags().String("suffix", "", "write <name><suffix>.<ext> next to the input instead of overwriting it")
	cmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	cmd.Flags().Bool("stats", false, "print processing statistics")
	cmd.Flags().String("format", "text", "result format (text, json, csv)")
	cmd.Flags().BoolP("quiet", "q", false, "only print the summary line")
}

// runTransform resolves flags over the configuration and runs op as a batch.
func (a *app) runTransform(cmd *cobra.Command, args []string, op pipeline.Operation) error {
	cfg := a.config()
	flags := cmd.Flags()

	input, _ := flags.GetString("input")
	if len(args) > 0 {
		if input != "" && input != args[0] {
			return fmt.Errorf("conflicting inputs %q and %q", input, args[0])
		}
		input = args[0]
	}
	if input == "" {
		return errNoInput
	}
	output, _ := flags.GetString("output")

	bc := batch.DefaultConfig()
	bc.Input = input
	bc.Output = output
	bc.Suffix = cfg.Output.Suffix
	bc.Recursive = cfg.Batch.Recursive
	bc.IncludePatterns = cfg.Batch.Include
	bc.ExcludePatterns = cfg.Batch.Exclude
	bc.Workers = cfg.Batch.Workers
	bc.Format = cfg.Output.Format
	bc.ProgressWriter = cmd.ErrOrStderr()
	bc.Logger = a.log()
	quality := cfg.Output.Quality

	if flags.Changed("suffix") {
		bc.Suffix, _ = flags.GetString("suffix")
	}
	if flags.Changed("recursive") {
		bc.Recursive, _ = flags.GetBool("recursive")
	}
	if flags.Changed("include") {
		bc.IncludePatterns, _ = flags.GetStringSlice("include")
	}
	if flags.Changed("exclude") {
		bc.ExcludePatterns, _ = flags.GetStringSlice("exclude")
	}
	if flags.Changed("workers") {
		bc.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("format") {
		bc.Format, _ = flags.GetString("format")
	}
	if flags.Changed("quality") {
		quality, _ = flags.GetInt("quality")
	}
	bc.ShowProgress, _ = flags.GetBool("progress")
	bc.ShowStats, _ = flags.GetBool("stats")
	bc.Quiet, _ = flags.GetBool("quiet")

	if quality < 1 || quality > 100 {
		return fmt.Errorf("invalid quality %d (must be between 1 and 100)", quality)
	}
	if bc.Workers < 0 {
		return fmt.Errorf("invalid workers %d (must be >= 0)", bc.Workers)
	}
	switch bc.Format {
	case "text", "json", "csv":
	default:
		return fmt.Errorf("invalid format %q (must be text, json or csv)", bc.Format)
	}
	if op == pipeline.OpAdd && bc.Output == "" && bc.Suffix == "" {
		return errors.New("add needs -o or --suffix so the source images are kept")
	}

	comp, opts, err := a.compositorFor(cmd)
	if err != nil {
		return err
	}
	transform := pipeline.RemoveTransform(comp, opts)
	if op == pipeline.OpAdd {
		transform = pipeline.AddTransform(comp, opts)
	}
	proc, err := pipeline.NewProcessor(codec.Codec{Quality: quality}, op, transform, a.log())
	if err != nil {
		return err
	}
	proc.WithSizeDetector(comp.Detector())

	a.log().Debug("Starting batch", "op", op, "input", bc.Input, "output", bc.Output,
		"workers", bc.Workers, "recursive", bc.Recursive)

	res, err := batch.Run(cmd.Context(), bc, proc)
	if err != nil {
		return err
	}
	if err := res.Write(cmd.OutOrStdout(), bc.Format, bc.ShowStats, bc.Quiet); err != nil {
		return err
	}

	s := res.Summary
	if !s.OK() {
		if s.Skipped > 0 {
			return fmt.Errorf("interrupted: %d of %d images not processed", s.Skipped, len(s.Results))
		}
		return fmt.Errorf("%d of %d images failed", s.Failed, len(s.Results))
	}
	return nil
}
