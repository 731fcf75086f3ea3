package watermark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/unmark/internal/testutil"
)

func TestDetect(t *testing.T) {
	comp, err := NewCompositor()
	require.NoError(t, err)
	clean := testutil.UniformImage(400, 300, 60)

	d, err := comp.Detect(clean, Options{})
	require.NoError(t, err)
	assert.False(t, d.Present)
	assert.InDelta(t, 0.0, d.Score, 1e-9)
	assert.Equal(t, SmallSize, d.Size)

	marked, err := comp.AddWatermark(clean, Options{})
	require.NoError(t, err)
	d, err = comp.Detect(marked, Options{})
	require.NoError(t, err)
	assert.True(t, d.Present)
	assert.Greater(t, d.Score, DetectionThreshold)

	wantRegion, err := SmallSize.Footprint(marked.Bounds())
	require.NoError(t, err)
	assert.Equal(t, wantRegion, d.Region)

	removed, err := comp.RemoveWatermark(marked, Options{})
	require.NoError(t, err)
	d, err = Detect(removed, SmallSize)
	require.NoError(t, err)
	assert.False(t, d.Present)
}

func TestDetect_ForcedSizeAndErrors(t *testing.T) {
	comp, err := NewCompositor()
	require.NoError(t, err)

	large := LargeSize
	d, err := comp.Detect(testutil.UniformImage(400, 400, 10), Options{ForceSize: &large})
	require.NoError(t, err)
	assert.Equal(t, LargeSize, d.Size)

	_, err = Detect(testutil.UniformImage(40, 40, 0), SmallSize)
	assert.ErrorIs(t, err, ErrFootprintOutOfBounds)

	_, err = comp.Detect(nil, Options{})
	assert.ErrorIs(t, err, ErrNilImage)
}
