package main

import (
	"flag"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/unmark/internal/testutil"
	"github.com/MeKo-Tech/unmark/internal/watermark"
	"github.com/disintegration/imaging"
)

func main() {
	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		generateAssets   = flag.Bool("assets", true, "Write the default alpha mattes")
		generateFixtures = flag.Bool("fixtures", false, "Write sample clean and watermarked images")
		assetDir         = flag.String("o", "internal/watermark/assets", "Directory for the alpha mattes")
		fixtureDir       = flag.String("fixtures-dir", "testdata/images", "Directory for the sample images")
		verbose          = flag.Bool("v", false, "Verbose output")
		help             = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate the embedded alpha mattes and sample images for unmark.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                 # Regenerate the default mattes\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -fixtures       # Also write sample images\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	// Relative paths are resolved against the project root
	root, err := testutil.GetProjectRootValidated()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	if *verbose {
		slog.Info("Project root", "path", root)
	}
	if err := os.Chdir(root); err != nil {
		slog.Error("Failed to change to project root", "error", err)
		os.Exit(1)
	}

	if *generateAssets {
		for _, size := range []watermark.WatermarkSize{watermark.SmallSize, watermark.LargeSize} {
			path := filepath.Join(*assetDir, fmt.Sprintf("alpha_%d.png", size.Width))
			if err := writeMatte(path, size.Width); err != nil {
				slog.Error("Failed to write alpha matte", "path", path, "error", err)
				os.Exit(1)
			}
			slog.Info("Wrote alpha matte", "path", path, "size", size.Variant.String())
		}
	}

	if *generateFixtures {
		if err := writeFixtures(*fixtureDir); err != nil {
			slog.Error("Failed to write fixtures", "error", err)
			os.Exit(1)
		}
		slog.Info("Wrote fixtures", "dir", *fixtureDir)
	}
}

// sparkle renders the four-pointed star as an n×n grayscale matte. The star is
// the region where sqrt|u| + sqrt|v| stays below 0.9, with a soft edge of
// width 0.25 and a peak opacity of 0.8.
func sparkle(n int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, n, n))
	c := float64(n-1) / 2
	h := float64(n) / 2
	for y := range n {
		v := math.Abs(float64(y)-c) / h
		for x := range n {
			u := math.Abs(float64(x)-c) / h
			q := math.Sqrt(u) + math.Sqrt(v)
			a := min(max((0.9-q)/0.25, 0), 1) * 0.8
			img.Pix[y*img.Stride+x] = uint8(math.Floor(a*255 + 0.5))
		}
	}
	return img
}

func writeMatte(path string, n int) error {
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create asset directory: %w", err)
	}
	return imaging.Save(sparkle(n), path)
}

// writeFixtures saves clean/marked pairs for both footprints.
func writeFixtures(dir string) error {
	if err := testutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create fixture directory: %w", err)
	}
	comp, err := watermark.NewCompositor()
	if err != nil {
		return err
	}

	samples := []struct {
		name          string
		width, height int
	}{
		{"small", 400, 300},
		{"large", 1280, 1280},
	}
	for _, s := range samples {
		clean := testutil.NoiseImage(s.width, s.height, int64(s.width))
		marked, err := comp.AddWatermark(clean, watermark.Options{})
		if err != nil {
			return fmt.Errorf("failed to mark %s sample: %w", s.name, err)
		}
		if err := imaging.Save(clean, filepath.Join(dir, s.name+"_clean.png")); err != nil {
			return err
		}
		if err := imaging.Save(marked, filepath.Join(dir, s.name+"_marked.png")); err != nil {
			return err
		}
	}
	return nil
}
