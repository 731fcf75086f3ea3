package watermark

import (
	"bytes"
	"embed"
	"fmt"
	"sync"

	"github.com/disintegration/imaging"
)

//go:embed assets/alpha_48.png assets/alpha_96.png
var embeddedAssets embed.FS

// AlphaProvider supplies the default matte for a footprint.
type AlphaProvider interface {
	AlphaMap(size WatermarkSize) (*AlphaMap, error)
}

var assetFiles = map[SizeVariant]string{
	Small: "assets/alpha_48.png",
	Large: "assets/alpha_96.png",
}

// Decoded assets are process-wide and never mutated after their sync.Once
// has run, so concurrent readers need no lock.
var builtinAssets = struct {
	once [2]sync.Once
	maps [2]*AlphaMap
	errs [2]error
}{}

// resampled caches assets scaled to non-default footprint geometry.
var resampled sync.Map

type resampleKey struct {
	variant       SizeVariant
	width, height int
}

// AssetProvider serves the embedded default mattes. Mattes are resampled when
// the footprint geometry differs from the embedded asset.
type AssetProvider struct{}

// AlphaMap implements AlphaProvider.
func (AssetProvider) AlphaMap(size WatermarkSize) (*AlphaMap, error) {
	base, err := defaultAsset(size.Variant)
	if err != nil {
		return nil, err
	}
	if base.width == size.Width && base.height == size.Height {
		return base, nil
	}

	key := resampleKey{variant: size.Variant, width: size.Width, height: size.Height}
	if m, ok := resampled.Load(key); ok {
		return m.(*AlphaMap), nil
	}
	scaled, err := AlphaMapFromImage(imaging.Resize(base.Image(), size.Width, size.Height, imaging.Lanczos))
	if err != nil {
		return nil, err
	}
	m, _ := resampled.LoadOrStore(key, scaled)
	return m.(*AlphaMap), nil
}

// DefaultAlphaMap returns the shared default matte for size.
func DefaultAlphaMap(size WatermarkSize) (*AlphaMap, error) {
	return AssetProvider{}.AlphaMap(size)
}

func defaultAsset(v SizeVariant) (*AlphaMap, error) {
	name, ok := assetFiles[v]
	if !ok {
		return nil, fmt.Errorf("no default alpha map for %s", v)
	}
	builtinAssets.once[v].Do(func() {
		builtinAssets.maps[v], builtinAssets.errs[v] = decodeAsset(name)
	})
	return builtinAssets.maps[v], builtinAssets.errs[v]
}

func decodeAsset(name string) (*AlphaMap, error) {
	data, err := embeddedAssets.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return AlphaMapFromImage(img)
}

// ResolveAlphaMap applies the matte precedence: an explicit map wins and must
// match size, otherwise the provider default for size is used.
func ResolveAlphaMap(provider AlphaProvider, size WatermarkSize, explicit *AlphaMap) (*AlphaMap, error) {
	if explicit != nil {
		if err := explicit.Matches(size); err != nil {
			return nil, err
		}
		return explicit, nil
	}
	if provider == nil {
		provider = AssetProvider{}
	}
	m, err := provider.AlphaMap(size)
	if err != nil {
		return nil, err
	}
	if err := m.Matches(size); err != nil {
		return nil, err
	}
	return m, nil
}
