package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/unmark/internal/pipeline"
)

// FormatSummary renders the batch summary line.
func FormatSummary(s pipeline.Summary) string {
	line := fmt.Sprintf("%d succeeded, %d failed", s.Succeeded, s.Failed)
	if s.Skipped > 0 {
		line += fmt.Sprintf(", %d skipped", s.Skipped)
	}
	return line
}

// formatBatchResults formats the batch processing results in the specified format.
func formatBatchResults(s pipeline.Summary, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(s)
	case "csv":
		return formatCSV(s)
	case "text", "":
		return formatText(s), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

type jsonItem struct {
	pipeline.ItemResult
	Error string `json:"error,omitempty"`
}

// formatJSON formats results as JSON.
func formatJSON(s pipeline.Summary) (string, error) {
	out := struct {
		Operation pipeline.Operation `json:"operation"`
		Succeeded int                `json:"succeeded"`
		Failed    int                `json:"failed"`
		Skipped   int                `json:"skipped"`
		Duration  string             `json:"duration"`
		Items     []jsonItem         `json:"items"`
	}{
		Operation: s.Operation,
		Succeeded: s.Succeeded,
		Failed:    s.Failed,
		Skipped:   s.Skipped,
		Duration:  s.Duration.Round(time.Millisecond).String(),
		Items:     make([]jsonItem, len(s.Results)),
	}
	for i, r := range s.Results {
		out.Items[i] = jsonItem{ItemResult: r, Error: r.Message()}
	}

	bts, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bts) + "\n", nil
}

// formatCSV formats results as CSV.
func formatCSV(s pipeline.Summary) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	rows := [][]string{{"input", "output", "status", "size", "width", "height", "duration_ms", "error"}}
	for _, r := range s.Results {
		rows = append(rows, []string{
			r.Input,
			r.Output,
			status(r),
			r.Size,
			strconv.Itoa(r.Width),
			strconv.Itoa(r.Height),
			strconv.FormatInt(r.Duration.Milliseconds(), 10),
			r.Message(),
		})
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

// formatText lists failures only; successes are covered by the summary line.
func formatText(s pipeline.Summary) string {
	var output strings.Builder
	for _, r := range s.Results {
		if r.Success || r.Skipped {
			continue
		}
		output.WriteString(fmt.Sprintf("FAILED %s: %s\n", r.Input, r.Message()))
	}
	return output.String()
}

func status(r pipeline.ItemResult) string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Success:
		return "ok"
	default:
		return "failed"
	}
}
