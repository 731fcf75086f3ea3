package watermark

import (
	"errors"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAlphaMap(t *testing.T) {
	values := []float64{0, 0.25, 0.5, 1}
	m, err := NewAlphaMap(2, 2, values)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Width())
	assert.Equal(t, 2, m.Height())
	assert.Equal(t, image.Pt(2, 2), m.Size())
	assert.InDelta(t, 0.25, m.At(1, 0), 1e-12)
	assert.InDelta(t, 0.5, m.At(0, 1), 1e-12)
	assert.InDelta(t, 0.4375, m.Mean(), 1e-12)
	assert.InDelta(t, 1.0, m.Max(), 1e-12)

	// The map owns a copy.
	values[0] = 0.9
	assert.InDelta(t, 0.0, m.At(0, 0), 1e-12)
	out := m.Values()
	out[1] = 0.9
	assert.InDelta(t, 0.25, m.At(1, 0), 1e-12)
}

func TestNewAlphaMap_Invalid(t *testing.T) {
	_, err := NewAlphaMap(0, 2, nil)
	assert.Error(t, err)

	_, err = NewAlphaMap(2, 2, []float64{0, 0, 0})
	assert.Error(t, err)

	_, err = NewAlphaMap(2, 1, []float64{0, 1.5})
	assert.ErrorIs(t, err, ErrInvalidAlpha)

	_, err = NewAlphaMap(2, 1, []float64{-0.1, 0})
	assert.ErrorIs(t, err, ErrInvalidAlpha)

	_, err = NewAlphaMap(1, 1, []float64{math.NaN()})
	assert.ErrorIs(t, err, ErrInvalidAlpha)
}

func TestAlphaMap_Matches(t *testing.T) {
	m, err := UniformAlphaMap(48, 48, 0.3)
	require.NoError(t, err)
	assert.NoError(t, m.Matches(SmallSize))

	err = m.Matches(LargeSize)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	var sm *ShapeMismatchError
	require.True(t, errors.As(err, &sm))
	assert.Equal(t, image.Pt(48, 48), sm.Got)
	assert.Equal(t, LargeSize, sm.Size)
}

func TestAlphaMap_ImageRoundTrip(t *testing.T) {
	values := make([]float64, 16*8)
	for i := range values {
		values[i] = float64(i) / float64(len(values)-1)
	}
	m, err := NewAlphaMap(16, 8, values)
	require.NoError(t, err)

	back, err := AlphaMapFromImage(m.Image())
	require.NoError(t, err)
	require.Equal(t, m.Size(), back.Size())
	for i, v := range back.Values() {
		assert.InDelta(t, values[i], v, 1.0/255, "index %d", i)
	}
}

func TestAlphaMapFromImage_MaxChannel(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 204, B: 30, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 255, G: 0, B: 0, A: 255})

	m, err := AlphaMapFromImage(img)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, m.At(0, 0), 1e-9)
	assert.InDelta(t, 1.0, m.At(1, 0), 1e-9)

	_, err = AlphaMapFromImage(nil)
	assert.ErrorIs(t, err, ErrNilImage)
}

func TestLoadAlphaMap(t *testing.T) {
	m, err := UniformAlphaMap(48, 48, 0.4)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "matte.png")
	require.NoError(t, imaging.Save(m.Image(), path))

	loaded, err := LoadAlphaMap(path)
	require.NoError(t, err)
	assert.NoError(t, loaded.Matches(SmallSize))
	assert.InDelta(t, 0.4, loaded.Mean(), 1.0/255)

	_, err = LoadAlphaMap(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestDefaultAlphaMap(t *testing.T) {
	for _, size := range []WatermarkSize{SmallSize, LargeSize} {
		t.Run(size.Variant.String(), func(t *testing.T) {
			m, err := DefaultAlphaMap(size)
			require.NoError(t, err)
			require.NoError(t, m.Matches(size))

			for _, v := range m.Values() {
				require.GreaterOrEqual(t, v, 0.0)
				require.LessOrEqual(t, v, 1.0)
			}
			// Sparkle: opaque core, clear corners.
			c := size.Width / 2
			assert.InDelta(t, 0.8, m.At(c, c), 1.0/255)
			assert.InDelta(t, 0.0, m.At(0, 0), 1e-12)
			assert.InDelta(t, 0.0, m.At(size.Width-1, size.Height-1), 1e-12)
			assert.Greater(t, m.Mean(), 0.02)

			again, err := DefaultAlphaMap(size)
			require.NoError(t, err)
			assert.Same(t, m, again)
		})
	}
}

func TestDefaultAlphaMap_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]*AlphaMap, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := DefaultAlphaMap(LargeSize)
			if err == nil {
				results[i] = m
			}
		}(i)
	}
	wg.Wait()
	for _, m := range results {
		require.NotNil(t, m)
		assert.Same(t, results[0], m)
	}
}

func TestAssetProvider_Resample(t *testing.T) {
	size := WatermarkSize{Variant: Small, Width: 64, Height: 40, Margin: 16}
	m, err := AssetProvider{}.AlphaMap(size)
	require.NoError(t, err)
	assert.NoError(t, m.Matches(size))
	assert.Greater(t, m.Max(), 0.5)

	again, err := AssetProvider{}.AlphaMap(size)
	require.NoError(t, err)
	assert.Same(t, m, again)
}

type fixedProvider struct {
	m   *AlphaMap
	err error
}

func (p fixedProvider) AlphaMap(WatermarkSize) (*AlphaMap, error) { return p.m, p.err }

func TestResolveAlphaMap(t *testing.T) {
	explicit, err := UniformAlphaMap(48, 48, 0.1)
	require.NoError(t, err)

	got, err := ResolveAlphaMap(nil, SmallSize, explicit)
	require.NoError(t, err)
	assert.Same(t, explicit, got)

	_, err = ResolveAlphaMap(nil, LargeSize, explicit)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	got, err = ResolveAlphaMap(nil, LargeSize, nil)
	require.NoError(t, err)
	assert.NoError(t, got.Matches(LargeSize))

	// A provider returning the wrong geometry is rejected too.
	_, err = ResolveAlphaMap(fixedProvider{m: explicit}, LargeSize, nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	boom := errors.New("boom")
	_, err = ResolveAlphaMap(fixedProvider{err: boom}, SmallSize, nil)
	assert.ErrorIs(t, err, boom)
}
