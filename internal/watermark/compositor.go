package watermark

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

const (
	// DefaultLogoValue is the flat near-white the mark is painted with.
	DefaultLogoValue = 235.0
	// DefaultAlphaCeiling caps alpha before inversion to keep 1/(1-alpha) finite.
	DefaultAlphaCeiling = 0.98
	// DefaultMinAlpha is the coefficient below which removal leaves a pixel untouched.
	DefaultMinAlpha = 0.002
)

// Options override footprint and matte resolution for a single call. A nil
// field means "not set".
type Options struct {
	// ForceSize replaces size detection.
	ForceSize *WatermarkSize
	// AlphaMap replaces the default matte; it must match the resolved size.
	AlphaMap *AlphaMap
}

// Resolved is the geometry and matte chosen for one image.
type Resolved struct {
	Size     WatermarkSize
	Region   image.Rectangle
	AlphaMap *AlphaMap
}

// Compositor applies and inverts the mark on in-memory images. It holds no
// per-call state and is safe for concurrent use.
type Compositor struct {
	logoValue    float64
	alphaCeiling float64
	minAlpha     float64
	detector     SizeDetector
	provider     AlphaProvider
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithLogoValue sets the flat logo colour.
func WithLogoValue(v float64) Option { return func(c *Compositor) { c.logoValue = v } }

// WithAlphaCeiling sets the alpha cap used during removal.
func WithAlphaCeiling(v float64) Option { return func(c *Compositor) { c.alphaCeiling = v } }

// WithMinAlpha sets the skip threshold used during removal.
func WithMinAlpha(v float64) Option { return func(c *Compositor) { c.minAlpha = v } }

// WithSizeDetector replaces the footprint detector.
func WithSizeDetector(d SizeDetector) Option { return func(c *Compositor) { c.detector = d } }

// WithAlphaProvider replaces the source of default mattes.
func WithAlphaProvider(p AlphaProvider) Option { return func(c *Compositor) { c.provider = p } }

// NewCompositor builds a Compositor. The logo value and limits are fixed for
// its lifetime.
func NewCompositor(opts ...Option) (*Compositor, error) {
	c := &Compositor{
		logoValue:    DefaultLogoValue,
		alphaCeiling: DefaultAlphaCeiling,
		minAlpha:     DefaultMinAlpha,
		detector:     DefaultSizeDetector(),
		provider:     AssetProvider{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if math.IsNaN(c.logoValue) || c.logoValue < 0 || c.logoValue > 255 {
		return nil, fmt.Errorf("logo value must be within [0, 255], got %v", c.logoValue)
	}
	if !(c.alphaCeiling > 0 && c.alphaCeiling < 1) {
		return nil, fmt.Errorf("alpha ceiling must be within (0, 1), got %v", c.alphaCeiling)
	}
	if !(c.minAlpha >= 0 && c.minAlpha < c.alphaCeiling) {
		return nil, fmt.Errorf("min alpha must be within [0, %v), got %v", c.alphaCeiling, c.minAlpha)
	}
	if err := c.detector.Validate(); err != nil {
		return nil, fmt.Errorf("invalid size detector: %w", err)
	}
	if c.provider == nil {
		c.provider = AssetProvider{}
	}
	return c, nil
}

// LogoValue returns the logo colour.
func (c *Compositor) LogoValue() float64 { return c.logoValue }

// AlphaCeiling returns the removal alpha cap.
func (c *Compositor) AlphaCeiling() float64 { return c.alphaCeiling }

// Detector returns the footprint detector.
func (c *Compositor) Detector() SizeDetector { return c.detector }

// Resolve picks geometry and matte for an image with the given bounds. The
// precedence is: explicit matte, then the forced size's default, then the
// detected size's default.
func (c *Compositor) Resolve(bounds image.Rectangle, opts Options) (Resolved, error) {
	size := c.detector.Detect(bounds.Dx(), bounds.Dy())
	if opts.ForceSize != nil {
		size = *opts.ForceSize
	}
	region, err := size.Footprint(bounds)
	if err != nil {
		return Resolved{}, err
	}
	m, err := ResolveAlphaMap(c.provider, size, opts.AlphaMap)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Size: size, Region: region, AlphaMap: m}, nil
}

// AddWatermark composites the mark onto a copy of img:
//
//	result = alpha*logo + (1-alpha)*pixel
//
// The input is never modified.
func (c *Compositor) AddWatermark(img image.Image, opts Options) (*image.NRGBA, error) {
	dst, res, err := c.prepare(img, opts)
	if err != nil {
		return nil, err
	}

	c.forEach(dst, res, func(a float64, p uint8) uint8 {
		return toChannel(a*c.logoValue + (1-a)*float64(p))
	}, false)
	return dst, nil
}

// RemoveWatermark inverts the mark on a copy of img:
//
//	original = (observed - alpha*logo) / (1 - alpha)
//
// Alpha is capped at the ceiling first, so fully opaque pixels are only
// approximately recovered. The input is never modified.
func (c *Compositor) RemoveWatermark(img image.Image, opts Options) (*image.NRGBA, error) {
	dst, res, err := c.prepare(img, opts)
	if err != nil {
		return nil, err
	}

	c.forEach(dst, res, func(a float64, p uint8) uint8 {
		a = math.Min(a, c.alphaCeiling)
		return toChannel((float64(p) - a*c.logoValue) / (1 - a))
	}, true)
	return dst, nil
}

func (c *Compositor) prepare(img image.Image, opts Options) (*image.NRGBA, Resolved, error) {
	if img == nil {
		return nil, Resolved{}, ErrNilImage
	}
	// imaging.Clone always returns a fresh buffer anchored at the origin.
	dst := imaging.Clone(img)
	res, err := c.Resolve(dst.Bounds(), opts)
	if err != nil {
		return nil, Resolved{}, err
	}
	return dst, res, nil
}

func (c *Compositor) forEach(dst *image.NRGBA, res Resolved, blend func(a float64, p uint8) uint8, skipFaint bool) {
	r := res.Region
	for row := range r.Dy() {
		for col := range r.Dx() {
			a := res.AlphaMap.At(col, row)
			if skipFaint && a < c.minAlpha {
				continue
			}
			off := dst.PixOffset(r.Min.X+col, r.Min.Y+row)
			for ch := range 3 {
				dst.Pix[off+ch] = blend(a, dst.Pix[off+ch])
			}
		}
	}
}

func toChannel(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}
