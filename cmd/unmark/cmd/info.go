package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/MeKo-Tech/unmark/internal/batch"
	"github.com/MeKo-Tech/unmark/internal/codec"
	"github.com/MeKo-Tech/unmark/internal/watermark"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// fileInfo is what info reports for one file.
type fileInfo struct {
	File      string  `json:"file"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Bytes     int64   `json:"bytes"`
	Size      string  `json:"size"`
	Footprint string  `json:"footprint"`
	Margin    int     `json:"margin"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Fits      bool    `json:"fits"`
	Detected  bool    `json:"detected"`
	Score     float64 `json:"score"`
	Error     string  `json:"error,omitempty"`
}

func (a *app) newInfoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <path...>",
		Short: "Show the expected watermark footprint and a detection score",
		Long: `Show the size variant, footprint position and a detection score for each
image. The score is the mean luma lift of the footprint over the band around
it; the mark is reported present when it exceeds the detection threshold.
Directories are expanded to the images they contain.

Examples:
  unmark info photo.png
  unmark info --format json -r ./screenshots`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runInfo,
	}
	cmd.Flags().String("size", "auto", "footprint size (auto, small, large)")
	cmd.Flags().String("format", "text", "output format (text, json)")
	cmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	return cmd
}

func (a *app) runInfo(cmd *cobra.Command, args []string) error {
	detector := a.config().SizeDetector()
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q (must be text or json)", format)
	}
	sizeFlag, _ := cmd.Flags().GetString("size")
	forced, isForced, err := forcedSize(detector, sizeFlag)
	if err != nil {
		return err
	}

	recursive, _ := cmd.Flags().GetBool("recursive")
	files, err := batch.Discover(args, recursive, nil, nil)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%w in %v", batch.ErrNoImages, args)
	}

	infos := make([]fileInfo, 0, len(files))
	failed := 0
	for _, path := range files {
		info := describeFile(detector, path, forced, isForced)
		if info.Error != "" {
			failed++
			a.log().Warn("Failed to inspect image", "file", path, "error", info.Error)
		}
		infos = append(infos, info)
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(infos); err != nil {
			return err
		}
	} else {
		for _, info := range infos {
			writeInfo(out, info)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be read", failed, len(files))
	}
	return nil
}

func describeFile(d watermark.SizeDetector, path string, forced watermark.WatermarkSize, isForced bool) fileInfo {
	info := fileInfo{File: path}
	img, err := codec.Decode(path)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	if st, err := os.Stat(path); err == nil {
		info.Bytes = st.Size()
	}

	b := img.Bounds()
	info.Width, info.Height = b.Dx(), b.Dy()
	size := d.Detect(info.Width, info.Height)
	if isForced {
		size = forced
	}
	info.Size = size.Variant.String()
	info.Footprint = fmt.Sprintf("%dx%d", size.Width, size.Height)
	info.Margin = size.Margin

	det, err := watermark.Detect(img, size)
	if err != nil {
		return info
	}
	info.Fits = true
	info.X, info.Y = det.Region.Min.X, det.Region.Min.Y
	info.Detected = det.Present
	info.Score = det.Score
	return info
}

var titleCase = cases.Title(language.English)

func writeInfo(w io.Writer, info fileInfo) {
	_, _ = fmt.Fprintln(w, info.File)
	if info.Error != "" {
		_, _ = fmt.Fprintf(w, "  Error:      %s\n", info.Error)
		return
	}
	_, _ = fmt.Fprintf(w, "  Dimensions: %dx%d (%s)\n", info.Width, info.Height, humanize.Bytes(uint64(info.Bytes))) //nolint:gosec // file sizes are non-negative
	_, _ = fmt.Fprintf(w, "  Watermark:  %s (%s, margin %dpx)\n", titleCase.String(info.Size), info.Footprint, info.Margin)
	if !info.Fits {
		_, _ = fmt.Fprintln(w, "  Footprint:  does not fit the image")
		return
	}
	_, _ = fmt.Fprintf(w, "  Footprint:  x=%d y=%d\n", info.X, info.Y)
	state := "not detected"
	if info.Detected {
		state = "present"
	}
	_, _ = fmt.Fprintf(w, "  Detection:  score %.2f, %s\n", info.Score, state)
}
