// Package codec decodes and encodes image files for the watermark pipeline.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultQuality is the JPEG quality used when none is given.
const DefaultQuality = 100

// SupportedExtensions lists file extensions accepted for decoding.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tif", ".tiff", ".webp"}

// decodeOnly lists formats that can be read but not written.
var decodeOnly = map[string]bool{".webp": true}

// DecodeError reports a failure reading or decoding an input.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports a failure encoding or writing an output.
type EncodeError struct {
	Path string
	Err  error
}

func (e *EncodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("encode: %v", e.Err)
	}
	return fmt.Sprintf("encode %s: %v", e.Path, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// IsSupported reports whether the path has a decodable image extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// CanEncode reports whether the path has an extension the encoder can write.
func CanEncode(path string) bool {
	_, err := imaging.FormatFromFilename(path)
	return err == nil
}

// OutputName maps a decode-only input name to a PNG output name and
// returns other names unchanged.
func OutputName(path string) string {
	ext := filepath.Ext(path)
	if decodeOnly[strings.ToLower(ext)] {
		return strings.TrimSuffix(path, ext) + ".png"
	}
	return path
}

// FormatFromName accepts a bare format name ("png", "jpeg") or a file name.
func FormatFromName(name string) (imaging.Format, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if !strings.Contains(n, ".") {
		n = "x." + n
	}
	f, err := imaging.FormatFromFilename(n)
	if err != nil {
		return 0, fmt.Errorf("unsupported output format %q", name)
	}
	return f, nil
}

// ContentType returns the MIME type for an encoder format.
func ContentType(f imaging.Format) string {
	switch f {
	case imaging.JPEG:
		return "image/jpeg"
	case imaging.PNG:
		return "image/png"
	case imaging.GIF:
		return "image/gif"
	case imaging.TIFF:
		return "image/tiff"
	case imaging.BMP:
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}

// Decode reads and decodes an image file, applying EXIF orientation.
func Decode(path string) (image.Image, error) {
	if path == "" {
		return nil, &DecodeError{Err: errors.New("empty path")}
	}
	if !IsSupported(path) {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}
	f, err := os.Open(path) //nolint:gosec // G304: reading user-provided image path is expected
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return img, nil
}

// DecodeBytes decodes an in-memory image and reports its format name.
func DecodeBytes(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", &DecodeError{Err: errors.New("empty input")}
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", &DecodeError{Err: err}
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", &DecodeError{Err: err}
	}
	return img, format, nil
}

// Encode writes img to path in the format implied by its extension. The file
// is written to a temporary sibling and renamed into place, so a failed
// encode never leaves partial output behind.
func Encode(img image.Image, path string, quality int) error {
	if img == nil {
		return &EncodeError{Path: path, Err: errors.New("nil image")}
	}
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return &EncodeError{Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &EncodeError{Path: path, Err: err}
	}
	tmp, err := os.CreateTemp(dir, ".unmark-*"+filepath.Ext(path))
	if err != nil {
		return &EncodeError{Path: path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := EncodeTo(tmp, img, format, quality); err != nil {
		_ = tmp.Close()
		cleanup()
		return &EncodeError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &EncodeError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return &EncodeError{Path: path, Err: err}
	}
	return nil
}

// EncodeTo writes img to w. Quality only affects JPEG.
func EncodeTo(w io.Writer, img image.Image, format imaging.Format, quality int) error {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return imaging.Encode(w, img, format, imaging.JPEGQuality(quality))
}

// EncodeBytes encodes img in memory.
func EncodeBytes(img image.Image, format imaging.Format, quality int) ([]byte, error) {
	if img == nil {
		return nil, &EncodeError{Err: errors.New("nil image")}
	}
	var buf bytes.Buffer
	if err := EncodeTo(&buf, img, format, quality); err != nil {
		return nil, &EncodeError{Err: err}
	}
	return buf.Bytes(), nil
}

// Codec is the file codec used by the pipeline.
type Codec struct {
	Quality int
}

// Decode implements the pipeline codec contract.
func (c Codec) Decode(path string) (image.Image, error) { return Decode(path) }

// Encode implements the pipeline codec contract.
func (c Codec) Encode(img image.Image, path string) error { return Encode(img, path, c.Quality) }
