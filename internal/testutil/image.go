package testutil

import (
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// SmallImage is below the large-mark crossover.
	SmallImage = ImageSize{320, 240}
	// MediumImage is still rendered with the small mark (min side 768).
	MediumImage = ImageSize{1024, 768}
	// LargeImage gets the large mark.
	LargeImage = ImageSize{1600, 1200}
)

// UniformImage returns an opaque image filled with one grey level.
func UniformImage(width, height int, v uint8) *image.NRGBA {
	return imaging.New(width, height, color.NRGBA{R: v, G: v, B: v, A: 255})
}

// ColorImage returns an opaque image filled with c.
func ColorImage(width, height int, c color.NRGBA) *image.NRGBA {
	return imaging.New(width, height, c)
}

// GradientImage returns an opaque image with a diagonal gradient per channel.
func GradientImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			off := img.PixOffset(x, y)
			img.Pix[off] = uint8((x * 255) / max(width-1, 1))
			img.Pix[off+1] = uint8((y * 255) / max(height-1, 1))
			img.Pix[off+2] = uint8(((x + y) * 255) / max(width+height-2, 1))
			img.Pix[off+3] = 255
		}
	}
	return img
}

// NoiseImage returns an opaque image of uniformly random pixels.
func NoiseImage(width, height int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // G404: deterministic test data
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.Intn(256))
		img.Pix[i+1] = uint8(rng.Intn(256))
		img.Pix[i+2] = uint8(rng.Intn(256))
		img.Pix[i+3] = 255
	}
	return img
}

// SaveImage writes img to path; the format follows the file extension.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)
	require.NoError(t, imaging.Save(img, path), "Failed to save image %s", path)
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) *image.NRGBA {
	t.Helper()

	img, err := imaging.Open(path)
	require.NoError(t, err, "Failed to open image file %s", path)
	return imaging.Clone(img)
}

// WriteCorruptImage writes bytes that carry an image extension but cannot be decoded.
func WriteCorruptImage(t *testing.T, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, os.WriteFile(path, []byte("this is not an image"), 0o600))
}

// MaxChannelDiff returns the largest absolute RGB difference between two
// equally sized images within rect.
func MaxChannelDiff(a, b *image.NRGBA, rect image.Rectangle) int {
	worst := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			oa, ob := a.PixOffset(x, y), b.PixOffset(x, y)
			for c := range 3 {
				d := int(a.Pix[oa+c]) - int(b.Pix[ob+c])
				if d < 0 {
					d = -d
				}
				worst = max(worst, d)
			}
		}
	}
	return worst
}
