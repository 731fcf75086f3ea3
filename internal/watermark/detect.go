package watermark

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// DetectionThreshold is the luma lift, in 8-bit units, above which the mark is
// reported present. The mark is near-white, so its footprint reads brighter
// than the band around it.
const DetectionThreshold = 6.0

// Detection describes whether the known mark appears at its expected place.
type Detection struct {
	Present bool
	Score   float64
	Size    WatermarkSize
	Region  image.Rectangle
}

// Detect compares the mean luma inside the footprint with a surrounding band.
func Detect(img image.Image, size WatermarkSize) (Detection, error) {
	if img == nil {
		return Detection{}, ErrNilImage
	}
	src := imaging.Clone(img)
	bounds := src.Bounds()

	rect, err := size.Footprint(bounds)
	if err != nil {
		return Detection{}, err
	}

	band := max(size.Width/3, 8)
	outer := rect.Inset(-band).Intersect(bounds)

	inMean, inCount := meanLuma(src, rect, image.Rectangle{})
	bgMean, bgCount := meanLuma(src, outer, rect)
	if inCount == 0 || bgCount == 0 {
		return Detection{}, errors.New("insufficient pixels to evaluate watermark")
	}

	score := inMean - bgMean
	return Detection{
		Present: score > DetectionThreshold,
		Score:   score,
		Size:    size,
		Region:  rect,
	}, nil
}

// Detect resolves the size the same way removal would and runs Detect.
func (c *Compositor) Detect(img image.Image, opts Options) (Detection, error) {
	if img == nil {
		return Detection{}, ErrNilImage
	}
	b := img.Bounds()
	size := c.detector.Detect(b.Dx(), b.Dy())
	if opts.ForceSize != nil {
		size = *opts.ForceSize
	}
	return Detect(img, size)
}

// meanLuma averages Rec. 709 luma over region, skipping pixels in exclude.
func meanLuma(img *image.NRGBA, region, exclude image.Rectangle) (float64, int) {
	var sum float64
	var count int
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			if !exclude.Empty() && (image.Point{X: x, Y: y}).In(exclude) {
				continue
			}
			off := img.PixOffset(x, y)
			sum += 0.2126*float64(img.Pix[off]) + 0.7152*float64(img.Pix[off+1]) + 0.0722*float64(img.Pix[off+2])
			count++
		}
	}
	if count == 0 {
		return 0, 0
	}
	return sum / float64(count), count
}
