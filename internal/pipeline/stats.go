package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/MeKo-Tech/unmark/internal/common"
	"github.com/dustin/go-humanize"
)

// Stats are the aggregate figures printed by --stats.
type Stats struct {
	Total       int            `json:"total"`
	Succeeded   int            `json:"succeeded"`
	Failed      int            `json:"failed"`
	Skipped     int            `json:"skipped"`
	Pixels      int64          `json:"pixels"`
	BytesIn     int64          `json:"bytes_in"`
	BytesOut    int64          `json:"bytes_out"`
	Duration    time.Duration  `json:"duration_ns"`
	BySize      map[string]int `json:"by_size"`
	SlowestFile string         `json:"slowest_file,omitempty"`
	Slowest     time.Duration  `json:"slowest_ns,omitempty"`

	Memory common.MemoryStats `json:"memory"`
}

// ComputeStats aggregates a summary.
func ComputeStats(s Summary) Stats {
	st := Stats{
		Total:     len(s.Results),
		Succeeded: s.Succeeded,
		Failed:    s.Failed,
		Skipped:   s.Skipped,
		Duration:  s.Duration,
		BySize:    map[string]int{},
		Memory:    common.GetMemoryStats(),
	}
	for _, r := range s.Results {
		st.BytesIn += r.BytesIn
		st.BytesOut += r.BytesOut
		if r.Success {
			st.Pixels += int64(r.Width) * int64(r.Height)
			st.BySize[r.Size]++
		}
		if r.Duration > st.Slowest {
			st.Slowest = r.Duration
			st.SlowestFile = r.Input
		}
	}
	return st
}

// Rate returns finished images per second.
func (st Stats) Rate() float64 {
	if st.Duration <= 0 {
		return 0
	}
	return float64(st.Succeeded+st.Failed) / st.Duration.Seconds()
}

func (st Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Processed %s images in %v (%.1f images/s)\n",
		humanize.Comma(int64(st.Total)), st.Duration.Round(time.Millisecond), st.Rate())
	fmt.Fprintf(&b, "  succeeded: %d, failed: %d, skipped: %d\n", st.Succeeded, st.Failed, st.Skipped)
	fmt.Fprintf(&b, "  read %s, wrote %s, %s pixels\n",
		humanize.Bytes(uint64(max(st.BytesIn, 0))), //nolint:gosec // G115: clamped to non-negative
		humanize.Bytes(uint64(max(st.BytesOut, 0))), //nolint:gosec // G115: clamped to non-negative
		humanize.SIWithDigits(float64(st.Pixels), 1, ""))
	if n := st.BySize["small"] + st.BySize["large"]; n > 0 {
		fmt.Fprintf(&b, "  small marks: %d, large marks: %d\n", st.BySize["small"], st.BySize["large"])
	}
	if st.SlowestFile != "" {
		fmt.Fprintf(&b, "  slowest: %s (%v)\n", st.SlowestFile, st.Slowest.Round(time.Millisecond))
	}
	fmt.Fprintf(&b, "  memory: %s\n", st.Memory)
	return b.String()
}
