package server

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/unmark/internal/testutil"
	"github.com/MeKo-Tech/unmark/internal/watermark"
	"github.com/stretchr/testify/require"
)

// newTestServer returns a server with the default compositor and a silent
// logger.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	s, err := NewServer(Config{
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		TimeoutSec:  10,
		Quality:     95,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return s
}

// encodePNG encodes an image to PNG bytes.
func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// watermarkedPNG returns a uniform image with the default mark composited.
func watermarkedPNG(t *testing.T, width, height int, background uint8) []byte {
	t.Helper()

	comp, err := watermark.NewCompositor()
	require.NoError(t, err)
	marked, err := comp.AddWatermark(testutil.UniformImage(width, height, background), watermark.Options{})
	require.NoError(t, err)
	return encodePNG(t, marked)
}

// createMultipartRequest creates a multipart form request with an image.
func createMultipartRequest(t *testing.T, path string, imageData []byte, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if imageData != nil {
		part, err := writer.CreateFormFile("image", "upload.png")
		require.NoError(t, err)
		_, err = part.Write(imageData)
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// decodeResponseImage decodes the body of an image response.
func decodeResponseImage(t *testing.T, body []byte) image.Image {
	t.Helper()

	img, _, err := image.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	return img
}

// withRequestID attaches a request ID the way corsMiddleware does.
func withRequestID(r *http.Request, id string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), requestIDKey, id))
}
