package cmd

import (
	"strings"

	"github.com/MeKo-Tech/unmark/internal/watermark"
	"github.com/spf13/cobra"
)

// addCompositorFlags registers the flags that shape the compositor.
func addCompositorFlags(cmd *cobra.Command) {
	cmd.Flags().String("size", "auto", "footprint size (auto, small, large)")
	cmd.Flags().String("alpha-map", "", "alpha matte image to use instead of the built-in one")
	cmd.Flags().Float64("logo-value", watermark.DefaultLogoValue, "logo intensity the mark is blended with (0-255)")
}

// compositorFor builds the compositor and per-call options from the
// configuration and any compositor flags the command has.
func (a *app) compositorFor(cmd *cobra.Command) (*watermark.Compositor, watermark.Options, error) {
	cfg := *a.config()
	flags := cmd.Flags()

	if flags.Changed("logo-value") {
		cfg.Watermark.LogoValue, _ = flags.GetFloat64("logo-value")
	}
	comp, err := cfg.NewCompositor()
	if err != nil {
		return nil, watermark.Options{}, err
	}

	var opts watermark.Options
	size := "auto"
	if flags.Changed("size") {
		size, _ = flags.GetString("size")
	}
	if forced, ok, err := forcedSize(comp.Detector(), size); err != nil {
		return nil, watermark.Options{}, err
	} else if ok {
		opts.ForceSize = &forced
	}

	matte := cfg.Watermark.AlphaMap
	if flags.Changed("alpha-map") {
		matte, _ = flags.GetString("alpha-map")
	}
	if matte != "" {
		m, err := watermark.LoadAlphaMap(matte)
		if err != nil {
			return nil, watermark.Options{}, err
		}
		opts.AlphaMap = m
	}
	return comp, opts, nil
}

// forcedSize parses a --size value. "auto" and "" leave detection on.
func forcedSize(d watermark.SizeDetector, s string) (watermark.WatermarkSize, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "auto") {
		return watermark.WatermarkSize{}, false, nil
	}
	v, err := watermark.ParseSizeVariant(s)
	if err != nil {
		return watermark.WatermarkSize{}, false, err
	}
	return d.ForVariant(v), true, nil
}

