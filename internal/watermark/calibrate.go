package watermark

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// DegenerateEpsilon is the smallest denominator, in 8-bit intensity units,
// used when estimating alpha. Channels below it carry no usable signal.
const DegenerateEpsilon = 1.0

// RGB is a per-channel colour in 8-bit intensity units.
type RGB [3]float64

// Gray returns an RGB with all channels set to v.
func Gray(v float64) RGB { return RGB{v, v, v} }

// CalculateAlphaMap estimates a matte from one capture of the mark composited
// over a flat background of known colour:
//
//	alpha = (capture - background) / (logo - background)
//
// averaged over usable channels and clamped to [0, 1].
func CalculateAlphaMap(capture image.Image, background RGB, logoValue float64) (*AlphaMap, error) {
	if capture == nil {
		return nil, ErrNilImage
	}
	src := imaging.Clone(capture)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if err := checkCaptureSize(w, h); err != nil {
		return nil, err
	}

	var denom RGB
	for c := range 3 {
		denom[c] = logoValue - background[c]
	}

	values := make([]float64, w*h)
	for y := range h {
		for x := range w {
			off := src.PixOffset(x, y)
			var sum float64
			var n int
			for c := range 3 {
				if math.Abs(denom[c]) < DegenerateEpsilon {
					continue
				}
				sum += (float64(src.Pix[off+c]) - background[c]) / denom[c]
				n++
			}
			if n > 0 {
				values[y*w+x] = sum / float64(n)
			}
		}
	}
	return newClampedAlphaMap(w, h, values), nil
}

// CalculateAlphaMapPair estimates a matte from two captures of the same mark
// over different flat backgrounds. It does not need the logo value, only that
// it is the same in both captures. Subtracting the two compositing equations
// gives
//
//	capture1 - capture2 = (1 - alpha) * (background1 - background2)
//
// which is solved per channel, averaged and clamped to [0, 1].
func CalculateAlphaMapPair(capture1, capture2 image.Image, background1, background2 RGB) (*AlphaMap, error) {
	if capture1 == nil || capture2 == nil {
		return nil, ErrNilImage
	}
	a, b := imaging.Clone(capture1), imaging.Clone(capture2)
	if a.Bounds().Size() != b.Bounds().Size() {
		return nil, &CalibrationMismatchError{First: a.Bounds().Size(), Second: b.Bounds().Size()}
	}
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	if err := checkCaptureSize(w, h); err != nil {
		return nil, err
	}

	var denom RGB
	for c := range 3 {
		denom[c] = background1[c] - background2[c]
	}

	values := make([]float64, w*h)
	for y := range h {
		for x := range w {
			off := a.PixOffset(x, y)
			var sum float64
			var n int
			for c := range 3 {
				if math.Abs(denom[c]) < DegenerateEpsilon {
					continue
				}
				diff := float64(a.Pix[off+c]) - float64(b.Pix[off+c])
				sum += 1 - diff/denom[c]
				n++
			}
			if n > 0 {
				values[y*w+x] = sum / float64(n)
			}
		}
	}
	return newClampedAlphaMap(w, h, values), nil
}

// CropFootprint returns the footprint region of a full-size capture so it can
// be fed to the estimators.
func CropFootprint(capture image.Image, size WatermarkSize) (image.Image, error) {
	if capture == nil {
		return nil, ErrNilImage
	}
	rect, err := size.Footprint(capture.Bounds())
	if err != nil {
		return nil, err
	}
	return imaging.Crop(capture, rect), nil
}

// checkCaptureSize rejects captures that would yield a matte NewAlphaMap
// refuses.
func checkCaptureSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid alpha map dimensions %dx%d", w, h)
	}
	return nil
}
