package pipeline

import (
	"context"
	"runtime"
	"sync"

	"github.com/MeKo-Tech/unmark/internal/common"
)

// ParallelConfig holds configuration for batch processing.
type ParallelConfig struct {
	Workers          int              // Number of parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback // Optional progress reporting
}

// DefaultParallelConfig returns one worker per CPU and no progress reporting.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{Workers: runtime.NumCPU()}
}

type job struct {
	index int
	job   Job
}

// ProcessMany runs ProcessOne over jobs on a worker pool. A failing item does
// not stop the batch. When ctx is cancelled no further items are launched;
// items already running finish and are counted, the rest are marked Skipped.
// Results are returned in input order and the tallies do not depend on the
// worker count.
func (p *Processor) ProcessMany(ctx context.Context, jobs []Job, config ParallelConfig) Summary {
	timer := common.NewTimer()
	summary := Summary{Operation: p.op, Results: make([]ItemResult, len(jobs))}
	if len(jobs) == 0 {
		summary.Duration = timer.Stop()
		return summary
	}

	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(jobs))

	progress := config.ProgressCallback
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	progress.OnStart(len(jobs))
	defer progress.OnComplete()

	launched := make([]bool, len(jobs))
	queue := make(chan job)
	results := make(chan ItemResult, len(jobs))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				// In-flight items finish even if ctx is cancelled meanwhile.
				res := p.ProcessOne(context.WithoutCancel(ctx), j.job)
				res.Index = j.index
				results <- res
			}
		}()
	}

	go func() {
		defer close(queue)
		for i, jb := range jobs {
			if ctx.Err() != nil {
				return
			}
			select {
			case queue <- job{index: i, job: jb}:
				launched[i] = true
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	for res := range results {
		summary.Results[res.Index] = res
		done++
		if !res.Success {
			progress.OnError(done, res.Err)
		}
		progress.OnProgress(done, len(jobs))
	}

	// The queue goroutine has exited once results is closed, so launched is
	// safe to read.
	for i := range summary.Results {
		if !launched[i] {
			summary.Results[i] = ItemResult{Job: jobs[i], Index: i, Skipped: true, Err: ctx.Err()}
		}
		switch r := summary.Results[i]; {
		case r.Skipped:
			summary.Skipped++
		case r.Success:
			summary.Succeeded++
		default:
			summary.Failed++
		}
	}
	summary.Duration = timer.Stop()
	return summary
}

// JobsFor pairs each input with the output chosen by outputFor.
func JobsFor(inputs []string, outputFor func(string) string) []Job {
	jobs := make([]Job, len(inputs))
	for i, in := range inputs {
		jobs[i] = Job{Input: in, Output: outputFor(in)}
	}
	return jobs
}
