package watermark

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// AlphaMap is an immutable grid of blend coefficients in [0, 1], one per
// footprint pixel, stored row-major.
type AlphaMap struct {
	width  int
	height int
	values []float64
}

// NewAlphaMap validates and copies values into a new AlphaMap.
func NewAlphaMap(width, height int, values []float64) (*AlphaMap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid alpha map dimensions %dx%d", width, height)
	}
	if len(values) != width*height {
		return nil, fmt.Errorf("alpha map has %d values, want %d for %dx%d", len(values), width*height, width, height)
	}
	cp := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return nil, fmt.Errorf("%w: %v at index %d", ErrInvalidAlpha, v, i)
		}
		cp[i] = v
	}
	return &AlphaMap{width: width, height: height, values: cp}, nil
}

// UniformAlphaMap returns a map with every coefficient set to alpha.
func UniformAlphaMap(width, height int, alpha float64) (*AlphaMap, error) {
	values := make([]float64, width*height)
	for i := range values {
		values[i] = alpha
	}
	return NewAlphaMap(width, height, values)
}

// newClampedAlphaMap takes ownership of values and clamps them into [0, 1].
func newClampedAlphaMap(width, height int, values []float64) *AlphaMap {
	for i, v := range values {
		values[i] = clampUnit(v)
	}
	return &AlphaMap{width: width, height: height, values: values}
}

// Width returns the number of columns.
func (m *AlphaMap) Width() int { return m.width }

// Height returns the number of rows.
func (m *AlphaMap) Height() int { return m.height }

// Size returns the dimensions as a point.
func (m *AlphaMap) Size() image.Point { return image.Pt(m.width, m.height) }

// At returns the coefficient at column x, row y.
func (m *AlphaMap) At(x, y int) float64 { return m.values[y*m.width+x] }

// Values returns a copy of the coefficients.
func (m *AlphaMap) Values() []float64 {
	cp := make([]float64, len(m.values))
	copy(cp, m.values)
	return cp
}

// Mean returns the average coefficient.
func (m *AlphaMap) Mean() float64 {
	if len(m.values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range m.values {
		sum += v
	}
	return sum / float64(len(m.values))
}

// Max returns the largest coefficient.
func (m *AlphaMap) Max() float64 {
	var hi float64
	for _, v := range m.values {
		hi = math.Max(hi, v)
	}
	return hi
}

// Matches returns a ShapeMismatchError unless the map has exactly the
// footprint dimensions of size.
func (m *AlphaMap) Matches(size WatermarkSize) error {
	if m.width != size.Width || m.height != size.Height {
		return &ShapeMismatchError{Size: size, Got: m.Size()}
	}
	return nil
}

// Image renders the map as an 8-bit grayscale image, alpha*255 per pixel.
func (m *AlphaMap) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.width, m.height))
	for y := range m.height {
		for x := range m.width {
			img.SetGray(x, y, color.Gray{Y: uint8(math.Round(m.At(x, y) * 255))})
		}
	}
	return img
}

// AlphaMapFromImage reads a matte image, taking the brightest RGB channel of
// each pixel scaled to [0, 1].
func AlphaMapFromImage(img image.Image) (*AlphaMap, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	src := imaging.Clone(img)
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("invalid alpha map dimensions %dx%d", b.Dx(), b.Dy())
	}
	values := make([]float64, 0, b.Dx()*b.Dy())
	for y := range b.Dy() {
		for x := range b.Dx() {
			off := src.PixOffset(x, y)
			hi := max(src.Pix[off], src.Pix[off+1], src.Pix[off+2])
			values = append(values, float64(hi)/255.0)
		}
	}
	return newClampedAlphaMap(b.Dx(), b.Dy(), values), nil
}

// LoadAlphaMap reads a matte image from disk.
func LoadAlphaMap(path string) (*AlphaMap, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open alpha map %s: %w", path, err)
	}
	return AlphaMapFromImage(img)
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
