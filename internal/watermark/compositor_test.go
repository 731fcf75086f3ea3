package watermark

import (
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/unmark/internal/testutil"
)

func uniformMap(t *testing.T, size WatermarkSize, a float64) *AlphaMap {
	t.Helper()
	m, err := UniformAlphaMap(size.Width, size.Height, a)
	require.NoError(t, err)
	return m
}

func TestCompositor_Scenario(t *testing.T) {
	comp, err := NewCompositor()
	require.NoError(t, err)
	opts := Options{AlphaMap: uniformMap(t, SmallSize, 0.3)}

	src := testutil.UniformImage(200, 200, 100)
	region, err := SmallSize.Footprint(src.Bounds())
	require.NoError(t, err)

	added, err := comp.AddWatermark(src, opts)
	require.NoError(t, err)
	off := added.PixOffset(region.Min.X+5, region.Min.Y+5)
	v := added.Pix[off]
	// 0.3*235 + 0.7*100 = 140.5 up to float error.
	assert.Contains(t, []uint8{140, 141}, v)

	removed, err := comp.RemoveWatermark(added, opts)
	require.NoError(t, err)
	assert.LessOrEqual(t, testutil.MaxChannelDiff(src, removed, src.Bounds()), 1)
}

func TestCompositor_OnlyFootprintChanges(t *testing.T) {
	comp, err := NewCompositor()
	require.NoError(t, err)

	src := testutil.GradientImage(320, 240)
	original := make([]uint8, len(src.Pix))
	copy(original, src.Pix)

	added, err := comp.AddWatermark(src, Options{AlphaMap: uniformMap(t, SmallSize, 0.5)})
	require.NoError(t, err)

	// Input untouched, distinct buffer returned.
	assert.Equal(t, original, src.Pix)
	assert.NotSame(t, src, added)

	region, err := SmallSize.Footprint(src.Bounds())
	require.NoError(t, err)
	for y := range 240 {
		for x := range 320 {
			if (image.Point{X: x, Y: y}).In(region) {
				continue
			}
			so, do := src.PixOffset(x, y), added.PixOffset(x, y)
			require.Equal(t, src.Pix[so:so+4], added.Pix[do:do+4], "pixel %d,%d", x, y)
		}
	}
	assert.Positive(t, testutil.MaxChannelDiff(src, added, region))
}

func TestCompositor_RoundTripProperty(t *testing.T) {
	comp, err := NewCompositor()
	require.NoError(t, err)

	properties := gopter.NewProperties(nil)

	// Rounding the composite loses up to half a unit, which inversion scales
	// by 1/(1-alpha); the one unit bound therefore holds up to alpha 0.5.
	properties.Property("remove(add(v)) is within one unit of v", prop.ForAll(
		func(a float64, v uint8) bool {
			m, err := UniformAlphaMap(SmallSize.Width, SmallSize.Height, a)
			if err != nil {
				return false
			}
			opts := Options{AlphaMap: m}
			src := testutil.UniformImage(100, 100, v)
			added, err := comp.AddWatermark(src, opts)
			if err != nil {
				return false
			}
			removed, err := comp.RemoveWatermark(added, opts)
			if err != nil {
				return false
			}
			return testutil.MaxChannelDiff(src, removed, src.Bounds()) <= 1
		},
		gen.Float64Range(0, 0.5),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}

func TestCompositor_DefaultMatteRoundTrip(t *testing.T) {
	comp, err := NewCompositor()
	require.NoError(t, err)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 10
	properties := gopter.NewProperties(parameters)

	properties.Property("round trip with the default mattes", prop.ForAll(
		func(seed int64, large bool) bool {
			w, h := 300, 300
			if large {
				w, h = 1100, 1100
			}
			src := testutil.NoiseImage(w, h, seed)
			added, err := comp.AddWatermark(src, Options{})
			if err != nil {
				return false
			}
			removed, err := comp.RemoveWatermark(added, Options{})
			if err != nil {
				return false
			}
			// Default mattes peak at 0.8, so the bound is 0.5/0.2 rounded.
			return testutil.MaxChannelDiff(src, removed, src.Bounds()) <= 3
		},
		gen.Int64(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestCompositor_ForceSizePrecedence(t *testing.T) {
	comp, err := NewCompositor()
	require.NoError(t, err)
	bounds := image.Rect(0, 0, 2000, 2000)

	res, err := comp.Resolve(bounds, Options{})
	require.NoError(t, err)
	assert.Equal(t, LargeSize, res.Size)
	assert.Equal(t, image.Pt(96, 96), res.AlphaMap.Size())

	small := SmallSize
	res, err = comp.Resolve(bounds, Options{ForceSize: &small})
	require.NoError(t, err)
	assert.Equal(t, SmallSize, res.Size)
	assert.Equal(t, image.Rect(1920, 1920, 1968, 1968), res.Region)
	def, err := DefaultAlphaMap(SmallSize)
	require.NoError(t, err)
	assert.Same(t, def, res.AlphaMap)

	// An explicit map beats both defaults but still has to fit.
	explicit := uniformMap(t, SmallSize, 0.2)
	res, err = comp.Resolve(bounds, Options{ForceSize: &small, AlphaMap: explicit})
	require.NoError(t, err)
	assert.Same(t, explicit, res.AlphaMap)

	_, err = comp.Resolve(bounds, Options{AlphaMap: explicit})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestCompositor_Errors(t *testing.T) {
	comp, err := NewCompositor()
	require.NoError(t, err)

	_, err = comp.RemoveWatermark(testutil.UniformImage(50, 50, 0), Options{})
	assert.ErrorIs(t, err, ErrFootprintOutOfBounds)

	_, err = comp.AddWatermark(testutil.UniformImage(50, 50, 0), Options{})
	assert.ErrorIs(t, err, ErrFootprintOutOfBounds)

	_, err = comp.RemoveWatermark(testutil.UniformImage(200, 200, 0), Options{AlphaMap: uniformMap(t, LargeSize, 0.1)})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = comp.RemoveWatermark(nil, Options{})
	assert.ErrorIs(t, err, ErrNilImage)
}

func TestNewCompositor_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"logo too bright", WithLogoValue(300)},
		{"logo negative", WithLogoValue(-1)},
		{"ceiling one", WithAlphaCeiling(1)},
		{"ceiling zero", WithAlphaCeiling(0)},
		{"min above ceiling", WithMinAlpha(0.99)},
		{"min negative", WithMinAlpha(-0.1)},
		{"bad detector", WithSizeDetector(SizeDetector{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCompositor(tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestCompositor_Getters(t *testing.T) {
	comp, err := NewCompositor(WithLogoValue(200), WithAlphaCeiling(0.9), WithAlphaProvider(nil))
	require.NoError(t, err)
	assert.InDelta(t, 200.0, comp.LogoValue(), 1e-12)
	assert.InDelta(t, 0.9, comp.AlphaCeiling(), 1e-12)
	assert.Equal(t, DefaultSizeDetector(), comp.Detector())
}

func TestCompositor_CustomLogoValue(t *testing.T) {
	comp, err := NewCompositor(WithLogoValue(0))
	require.NoError(t, err)
	added, err := comp.AddWatermark(testutil.UniformImage(100, 100, 200), Options{AlphaMap: uniformMap(t, SmallSize, 0.5)})
	require.NoError(t, err)
	off := added.PixOffset(30, 30)
	assert.Equal(t, uint8(100), added.Pix[off])
}

func TestCompositor_AlphaCeilingClamps(t *testing.T) {
	comp, err := NewCompositor()
	require.NoError(t, err)
	opaque := uniformMap(t, SmallSize, 1)

	added, err := comp.AddWatermark(testutil.UniformImage(100, 100, 30), Options{AlphaMap: opaque})
	require.NoError(t, err)
	assert.Equal(t, uint8(235), added.Pix[added.PixOffset(40, 40)])

	// (0 - 0.98*235)/0.02 is far below zero and clamps.
	removed, err := comp.RemoveWatermark(testutil.UniformImage(100, 100, 0), Options{AlphaMap: opaque})
	require.NoError(t, err)
	assert.Equal(t, uint8(0), removed.Pix[removed.PixOffset(40, 40)])

	removed, err = comp.RemoveWatermark(testutil.UniformImage(100, 100, 255), Options{AlphaMap: opaque})
	require.NoError(t, err)
	assert.Equal(t, uint8(255), removed.Pix[removed.PixOffset(40, 40)])
}

func TestCompositor_MinAlphaSkipsFaintPixels(t *testing.T) {
	comp, err := NewCompositor(WithMinAlpha(0.2))
	require.NoError(t, err)
	src := testutil.UniformImage(100, 100, 100)

	removed, err := comp.RemoveWatermark(src, Options{AlphaMap: uniformMap(t, SmallSize, 0.1)})
	require.NoError(t, err)
	assert.Equal(t, src.Pix, removed.Pix)

	removed, err = comp.RemoveWatermark(src, Options{AlphaMap: uniformMap(t, SmallSize, 0.3)})
	require.NoError(t, err)
	assert.NotEqual(t, src.Pix, removed.Pix)
}

func TestCompositor_PreservesImageAlpha(t *testing.T) {
	comp, err := NewCompositor()
	require.NoError(t, err)
	src := testutil.ColorImage(120, 120, color.NRGBA{R: 10, G: 20, B: 30, A: 128})

	added, err := comp.AddWatermark(src, Options{AlphaMap: uniformMap(t, SmallSize, 0.5)})
	require.NoError(t, err)
	off := added.PixOffset(50, 50)
	assert.Equal(t, uint8(128), added.Pix[off+3])
	assert.NotEqual(t, uint8(10), added.Pix[off])
}

func TestCompositor_SubImageBounds(t *testing.T) {
	comp, err := NewCompositor()
	require.NoError(t, err)
	full := testutil.UniformImage(400, 400, 50)
	sub := full.SubImage(image.Rect(100, 100, 300, 300))

	out, err := comp.AddWatermark(sub, Options{})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 200), out.Bounds())
	// Footprint is relative to the sub-image corner.
	center := out.PixOffset(200-32-24, 200-32-24)
	assert.Greater(t, out.Pix[center], uint8(50))
	assert.Equal(t, uint8(50), full.Pix[full.PixOffset(250, 250)])
}

func TestCompositor_ConcurrentUse(t *testing.T) {
	comp, err := NewCompositor()
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			img := testutil.NoiseImage(256, 256, int64(i))
			marked, err := comp.AddWatermark(img, Options{})
			if err != nil {
				errs[i] = err
				return
			}
			_, errs[i] = comp.RemoveWatermark(marked, Options{})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}
