// Package watermark removes and re-applies the fixed semi-transparent corner
// mark by inverting the alpha compositing equation that produced it.
//
// A mark is composited as
//
//	observed = alpha*logo + (1-alpha)*original
//
// so, given the per-pixel alpha matte and the flat logo value, the original
// pixel is recovered with
//
//	original = (observed - alpha*logo) / (1 - alpha)
package watermark

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// SizeVariant enumerates the two footprints the mark is rendered at.
type SizeVariant int

const (
	Small SizeVariant = iota
	Large
)

func (v SizeVariant) String() string {
	switch v {
	case Small:
		return "small"
	case Large:
		return "large"
	default:
		return fmt.Sprintf("SizeVariant(%d)", int(v))
	}
}

// ParseSizeVariant parses "small" or "large" (case-insensitive).
func ParseSizeVariant(s string) (SizeVariant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "small", "s", "48":
		return Small, nil
	case "large", "l", "96":
		return Large, nil
	default:
		return Small, fmt.Errorf("unknown watermark size %q (want small or large)", s)
	}
}

// WatermarkSize is the geometry of one footprint variant in pixels. The
// footprint sits in the bottom-right corner, inset by Margin on the right and
// bottom edges.
type WatermarkSize struct {
	Variant SizeVariant
	Width   int
	Height  int
	Margin  int
}

// Default footprint geometries.
var (
	SmallSize = WatermarkSize{Variant: Small, Width: 48, Height: 48, Margin: 32}
	LargeSize = WatermarkSize{Variant: Large, Width: 96, Height: 96, Margin: 64}
)

// DefaultCrossover is the smallest min(width, height) rendered with the large
// mark. Images need both sides above 1024 to get it.
const DefaultCrossover = 1025

func (s WatermarkSize) String() string {
	return fmt.Sprintf("%s (%dx%d, margin %dpx)", s.Variant, s.Width, s.Height, s.Margin)
}

// Fits reports whether the footprint plus margin fits inside bounds.
func (s WatermarkSize) Fits(bounds image.Rectangle) bool {
	return s.Width > 0 && s.Height > 0 &&
		s.Width+s.Margin <= bounds.Dx() && s.Height+s.Margin <= bounds.Dy()
}

// Footprint returns the footprint rectangle inside bounds.
func (s WatermarkSize) Footprint(bounds image.Rectangle) (image.Rectangle, error) {
	if !s.Fits(bounds) {
		return image.Rectangle{}, &FootprintOutOfBoundsError{Size: s, Bounds: bounds}
	}
	x := bounds.Max.X - s.Margin - s.Width
	y := bounds.Max.Y - s.Margin - s.Height
	return image.Rect(x, y, x+s.Width, y+s.Height), nil
}

// SizeDetector maps image dimensions to a footprint variant using a single
// threshold on the smaller image side.
type SizeDetector struct {
	Crossover int
	Small     WatermarkSize
	Large     WatermarkSize
}

// DefaultSizeDetector returns the detector matching the real mark placement.
func DefaultSizeDetector() SizeDetector {
	return SizeDetector{Crossover: DefaultCrossover, Small: SmallSize, Large: LargeSize}
}

// Detect returns Small when min(width, height) < Crossover, Large otherwise.
func (d SizeDetector) Detect(width, height int) WatermarkSize {
	if min(width, height) < d.Crossover {
		return d.Small
	}
	return d.Large
}

// ForVariant returns the configured geometry for v.
func (d SizeDetector) ForVariant(v SizeVariant) WatermarkSize {
	switch v {
	case Large:
		return d.Large
	default:
		return d.Small
	}
}

// Validate checks that the detector geometry is usable.
func (d SizeDetector) Validate() error {
	if d.Crossover <= 0 {
		return fmt.Errorf("crossover must be positive, got %d", d.Crossover)
	}
	for _, s := range []WatermarkSize{d.Small, d.Large} {
		if s.Width <= 0 || s.Height <= 0 {
			return fmt.Errorf("%s footprint must be positive, got %dx%d", s.Variant, s.Width, s.Height)
		}
		if s.Margin < 0 {
			return fmt.Errorf("%s margin must not be negative, got %d", s.Variant, s.Margin)
		}
	}
	if d.Small.Variant != Small || d.Large.Variant != Large {
		return errors.New("footprint variants are swapped")
	}
	return nil
}

// GetWatermarkSize applies the default detector. It needs no other component.
func GetWatermarkSize(width, height int) WatermarkSize {
	return DefaultSizeDetector().Detect(width, height)
}
