// Package pipeline runs the decode, transform, encode cycle for single
// images and for batches on a worker pool.
package pipeline

import (
	"image"
	"time"

	"github.com/MeKo-Tech/unmark/internal/watermark"
)

// Codec is the image file collaborator.
type Codec interface {
	Decode(path string) (image.Image, error)
	Encode(img image.Image, path string) error
}

// Transform turns a decoded image into the image to encode.
type Transform func(img image.Image) (image.Image, error)

// Operation names a transform for reporting.
type Operation string

const (
	OpRemove Operation = "remove"
	OpAdd    Operation = "add"
)

// Job is one input file and where its result goes.
type Job struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// ItemResult is the outcome of one Job. Err is set when Success is false and
// the item was attempted.
type ItemResult struct {
	Job
	Index    int           `json:"index"`
	Success  bool          `json:"success"`
	Skipped  bool          `json:"skipped,omitempty"`
	Err      error         `json:"-"`
	Width    int           `json:"width,omitempty"`
	Height   int           `json:"height,omitempty"`
	Size     string        `json:"size,omitempty"`
	BytesIn  int64         `json:"bytes_in,omitempty"`
	BytesOut int64         `json:"bytes_out,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Message returns the item error message or "".
func (r ItemResult) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Summary aggregates the results of a batch in input order.
type Summary struct {
	Operation Operation     `json:"operation"`
	Results   []ItemResult  `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration_ns"`
}

// Counts returns the success and failure tallies.
func (s Summary) Counts() (int, int) { return s.Succeeded, s.Failed }

// OK reports whether every item succeeded.
func (s Summary) OK() bool { return s.Failed == 0 && s.Skipped == 0 }

// RemoveTransform removes the mark with c using opts.
func RemoveTransform(c *watermark.Compositor, opts watermark.Options) Transform {
	return func(img image.Image) (image.Image, error) {
		return c.RemoveWatermark(img, opts)
	}
}

// AddTransform applies the mark with c using opts.
func AddTransform(c *watermark.Compositor, opts watermark.Options) Transform {
	return func(img image.Image) (image.Image, error) {
		return c.AddWatermark(img, opts)
	}
}
