package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/unmark/internal/common"
	"github.com/MeKo-Tech/unmark/internal/watermark"
)

// Processor runs one transform over files through a codec.
type Processor struct {
	codec     Codec
	transform Transform
	op        Operation
	detector  watermark.SizeDetector
	logger    *slog.Logger
}

// NewProcessor builds a processor. A nil logger uses slog.Default().
func NewProcessor(codec Codec, op Operation, transform Transform, logger *slog.Logger) (*Processor, error) {
	if codec == nil {
		return nil, errors.New("codec is required")
	}
	if transform == nil {
		return nil, errors.New("transform is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		codec:     codec,
		transform: transform,
		op:        op,
		detector:  watermark.DefaultSizeDetector(),
		logger:    logger,
	}, nil
}

// WithSizeDetector sets the detector used to label results.
func (p *Processor) WithSizeDetector(d watermark.SizeDetector) *Processor {
	p.detector = d
	return p
}

// Operation returns the transform name.
func (p *Processor) Operation() Operation { return p.op }

// ProcessOne decodes the input, applies the transform and encodes the output.
// It never returns an error; failures, including panics, are reported in the
// result.
func (p *Processor) ProcessOne(ctx context.Context, job Job) (res ItemResult) {
	timer := common.NewNamedTimer(job.Input)
	res.Job = job
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Err = fmt.Errorf("panic while processing %s: %v", job.Input, r)
		}
		res.Duration = timer.Stop()
		if res.Err != nil {
			p.logger.Warn("Failed to process image", "op", p.op, "file", job.Input, "error", res.Err)
		} else {
			p.logger.Debug("Processed image", "op", p.op, "file", job.Input, "output", job.Output,
				"size", res.Size, "duration", res.Duration)
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	if info, err := os.Stat(job.Input); err == nil {
		res.BytesIn = info.Size()
	}

	img, err := p.codec.Decode(job.Input)
	if err != nil {
		res.Err = err
		return res
	}
	res.Width, res.Height = img.Bounds().Dx(), img.Bounds().Dy()
	res.Size = p.detector.Detect(res.Width, res.Height).Variant.String()

	out, err := p.transform(img)
	if err != nil {
		res.Err = fmt.Errorf("%s %s: %w", p.op, job.Input, err)
		return res
	}
	if err := p.codec.Encode(out, job.Output); err != nil {
		res.Err = err
		return res
	}
	if info, err := os.Stat(job.Output); err == nil {
		res.BytesOut = info.Size()
	}

	res.Success = true
	return res
}

// Apply runs the transform on an in-memory image.
func (p *Processor) Apply(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, watermark.ErrNilImage
	}
	return p.transform(img)
}
