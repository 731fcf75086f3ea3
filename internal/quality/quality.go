// Package quality measures how close a restored image is to its original.
package quality

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Grade buckets a PSNR value.
type Grade string

const (
	Excellent Grade = "excellent"
	Good      Grade = "good"
	Poor      Grade = "poor"
)

// Report is the comparison of two images over a region.
type Report struct {
	MSE    float64 `json:"mse"`
	PSNR   float64 `json:"psnr"`
	Grade  Grade   `json:"grade"`
	MaxAbs int     `json:"max_abs_diff"`
	Pixels int     `json:"pixels"`
}

// Compare computes MSE and PSNR over the RGB channels of a and b inside
// region. An empty region means the full image.
func Compare(a, b image.Image, region image.Rectangle) (Report, error) {
	if a == nil || b == nil {
		return Report{}, errors.New("nil image provided")
	}
	na, nb := imaging.Clone(a), imaging.Clone(b)
	if na.Bounds().Size() != nb.Bounds().Size() {
		return Report{}, fmt.Errorf("image sizes differ: %v vs %v", na.Bounds().Size(), nb.Bounds().Size())
	}
	if region.Empty() {
		region = na.Bounds()
	}
	region = region.Intersect(na.Bounds())
	if region.Empty() {
		return Report{}, errors.New("comparison region is empty")
	}

	var sum float64
	var worst int
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			oa, ob := na.PixOffset(x, y), nb.PixOffset(x, y)
			for c := range 3 {
				d := int(na.Pix[oa+c]) - int(nb.Pix[ob+c])
				sum += float64(d * d)
				if d < 0 {
					d = -d
				}
				worst = max(worst, d)
			}
		}
	}

	pixels := region.Dx() * region.Dy()
	mse := sum / float64(pixels*3)
	psnr := PSNR(mse)
	return Report{MSE: mse, PSNR: psnr, Grade: GradeFor(psnr), MaxAbs: worst, Pixels: pixels}, nil
}

// PSNR converts an 8-bit MSE to decibels. Identical images give +Inf.
func PSNR(mse float64) float64 {
	if mse <= 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(255*255/mse)
}

// GradeFor buckets psnr: above 50 dB is excellent, above 30 dB good.
func GradeFor(psnr float64) Grade {
	switch {
	case psnr > 50:
		return Excellent
	case psnr > 30:
		return Good
	default:
		return Poor
	}
}

// String renders the PSNR, using "inf" for identical images.
func (r Report) String() string {
	if math.IsInf(r.PSNR, 1) {
		return fmt.Sprintf("MSE 0.0000, PSNR inf dB (%s)", r.Grade)
	}
	return fmt.Sprintf("MSE %.4f, PSNR %.2f dB (%s)", r.MSE, r.PSNR, r.Grade)
}
