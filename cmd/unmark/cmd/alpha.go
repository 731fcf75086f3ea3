package cmd

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/unmark/internal/codec"
	"github.com/MeKo-Tech/unmark/internal/watermark"
	"github.com/spf13/cobra"
)

func (a *app) newAlphaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alpha --capture <image> -o <matte.png>",
		Short: "Estimate an alpha matte from captures of the mark",
		Long: `Estimate the alpha matte of the mark from captures over flat backgrounds.

With one capture the background colour and the logo value must be known:
alpha = (capture - background) / (logo - background).

With two captures over different backgrounds the logo value is not needed:
alpha = 1 - (capture1 - capture2) / (background1 - background2).

Backgrounds are a gray level ("0") or an "r,g,b" triple. Captures may be the
footprint itself or, with --from-corner, a full generated image from which the
footprint is cropped.

Examples:
  unmark alpha --capture black.png -o matte.png
  unmark alpha --capture black.png --capture2 white.png --background2 255 -o matte.png
  unmark alpha --capture full.png --from-corner --size large -o alpha_96.png`,
		Args: cobra.NoArgs,
		RunE: a.runAlpha,
	}

	cmd.Flags().String("capture", "", "capture of the mark over the first background (required)")
	cmd.Flags().String("capture2", "", "capture of the mark over the second background")
	cmd.Flags().String("background", "0", "first background colour (gray or r,g,b)")
	cmd.Flags().String("background2", "255", "second background colour (gray or r,g,b)")
	cmd.Flags().Bool("from-corner", false, "crop the footprint out of full-size captures")
	cmd.Flags().String("size", "auto", "footprint size for --from-corner (auto, small, large)")
	cmd.Flags().Float64("logo-value", watermark.DefaultLogoValue, "logo intensity for single-capture estimation (0-255)")
	cmd.Flags().StringP("output", "o", "", "output matte image (required)")
	_ = cmd.MarkFlagRequired("capture")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func (a *app) runAlpha(cmd *cobra.Command, _ []string) error {
	cfg := a.config()
	flags := cmd.Flags()

	capturePath, _ := flags.GetString("capture")
	capture2Path, _ := flags.GetString("capture2")
	output, _ := flags.GetString("output")
	fromCorner, _ := flags.GetBool("from-corner")
	sizeFlag, _ := flags.GetString("size")

	logoValue := cfg.Watermark.LogoValue
	if flags.Changed("logo-value") {
		logoValue, _ = flags.GetFloat64("logo-value")
	}
	if logoValue < 0 || logoValue > 255 {
		return fmt.Errorf("invalid logo value %g (must be between 0 and 255)", logoValue)
	}
	if !codec.CanEncode(output) {
		return fmt.Errorf("cannot write matte to %s: unsupported output format", output)
	}

	bgFlag, _ := flags.GetString("background")
	bg1, err := parseRGB(bgFlag)
	if err != nil {
		return fmt.Errorf("invalid --background: %w", err)
	}

	detector := cfg.SizeDetector()
	load := func(path string) (image.Image, error) {
		img, err := codec.Decode(path)
		if err != nil {
			return nil, err
		}
		if !fromCorner {
			return img, nil
		}
		b := img.Bounds()
		size := detector.Detect(b.Dx(), b.Dy())
		if forced, ok, err := forcedSize(detector, sizeFlag); err != nil {
			return nil, err
		} else if ok {
			size = forced
		}
		return watermark.CropFootprint(img, size)
	}

	c1, err := load(capturePath)
	if err != nil {
		return err
	}

	var m *watermark.AlphaMap
	if capture2Path == "" {
		m, err = watermark.CalculateAlphaMap(c1, bg1, logoValue)
	} else {
		bg2Flag, _ := flags.GetString("background2")
		bg2, perr := parseRGB(bg2Flag)
		if perr != nil {
			return fmt.Errorf("invalid --background2: %w", perr)
		}
		c2, lerr := load(capture2Path)
		if lerr != nil {
			return lerr
		}
		m, err = watermark.CalculateAlphaMapPair(c1, c2, bg1, bg2)
	}
	if err != nil {
		return err
	}

	if err := codec.Encode(m.Image(), output, 100); err != nil {
		return err
	}
	a.log().Debug("Wrote alpha matte", "file", output, "width", m.Width(), "height", m.Height())
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %dx%d alpha map to %s (mean %.3f, max %.3f)\n",
		m.Width(), m.Height(), output, m.Mean(), m.Max())
	return nil
}

// parseRGB reads "v" as gray or "r,g,b", each in [0, 255].
func parseRGB(s string) (watermark.RGB, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 1 && len(parts) != 3 {
		return watermark.RGB{}, fmt.Errorf("%q: want a gray level or r,g,b", s)
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return watermark.RGB{}, fmt.Errorf("%q: %w", s, err)
		}
		if v < 0 || v > 255 {
			return watermark.RGB{}, errors.New("channel values must be between 0 and 255")
		}
		vals[i] = v
	}
	if len(vals) == 1 {
		return watermark.Gray(vals[0]), nil
	}
	return watermark.RGB{vals[0], vals[1], vals[2]}, nil
}
