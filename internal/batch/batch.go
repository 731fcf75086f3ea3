package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/unmark/internal/pipeline"
)

// Result holds the result of batch processing.
type Result struct {
	Summary pipeline.Summary
	Stats   pipeline.Stats
	Workers int
}

// Run plans the jobs for cfg and processes them with p. The returned error
// covers planning only; per-item failures are counted in the summary.
func Run(ctx context.Context, cfg Config, p *pipeline.Processor) (*Result, error) {
	jobs, err := PlanJobs(cfg)
	if err != nil {
		return nil, err
	}

	var progress pipeline.ProgressCallback = pipeline.NewLogProgressCallback(cfg.Logger, slog.LevelDebug).
		WithInterval(cfg.ProgressLogEvery)
	if cfg.ShowProgress && !cfg.Quiet {
		w := cfg.ProgressWriter
		if w == nil {
			w = os.Stderr
		}
		console := pipeline.NewConsoleProgressCallback(w, string(p.Operation())+": ").
			WithUpdateInterval(cfg.ProgressInterval)
		progress = pipeline.NewMultiProgressCallback(console, progress)
	}

	summary := p.ProcessMany(ctx, jobs, pipeline.ParallelConfig{
		Workers:          cfg.Workers,
		ProgressCallback: progress,
	})
	return &Result{Summary: summary, Stats: pipeline.ComputeStats(summary), Workers: cfg.Workers}, nil
}

// FormatResults renders the per-item results.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.Summary, format)
}

// Write prints the results to w: per-item lines unless quiet, optional
// statistics, and the summary line.
func (r *Result) Write(w io.Writer, format string, showStats, quiet bool) error {
	if format != "text" || !quiet {
		out, err := r.FormatResults(format)
		if err != nil {
			return fmt.Errorf("failed to format results: %w", err)
		}
		if out != "" {
			_, _ = fmt.Fprint(w, out)
		}
	}
	if showStats && !quiet {
		_, _ = fmt.Fprintf(w, "\n%s", r.Stats)
	}
	if format == "text" {
		_, _ = fmt.Fprintln(w, FormatSummary(r.Summary))
	}
	return nil
}
