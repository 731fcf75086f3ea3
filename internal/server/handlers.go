package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/unmark/internal/codec"
	"github.com/MeKo-Tech/unmark/internal/pipeline"
	"github.com/MeKo-Tech/unmark/internal/version"
	"github.com/MeKo-Tech/unmark/internal/watermark"
	"github.com/disintegration/imaging"
)

const opInfo = "info"

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) removeHandler(w http.ResponseWriter, r *http.Request) {
	s.transformHandler(w, r, pipeline.OpRemove)
}

func (s *Server) addHandler(w http.ResponseWriter, r *http.Request) {
	s.transformHandler(w, r, pipeline.OpAdd)
}

// request is a decoded upload plus its per-request options.
type request struct {
	img      image.Image
	format   string
	opts     watermark.Options
	encodeAs imaging.Format
	quality  int
}

// transformHandler removes or adds the mark and streams the encoded image back.
func (s *Server) transformHandler(w http.ResponseWriter, r *http.Request, op pipeline.Operation) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, ok := s.parseUpload(w, r)
	if !ok {
		operationsTotal.WithLabelValues(string(op), "error").Inc()
		return
	}

	out, res, status, err := s.apply(op, req)
	if err != nil {
		operationsTotal.WithLabelValues(string(op), "error").Inc()
		s.writeErrorResponse(w, r, err.Error(), status)
		return
	}

	data, err := codec.EncodeBytes(out, req.encodeAs, req.quality)
	if err != nil {
		operationsTotal.WithLabelValues(string(op), "error").Inc()
		s.writeErrorResponse(w, r, fmt.Sprintf("Failed to encode result: %v", err), http.StatusInternalServerError)
		return
	}
	operationsTotal.WithLabelValues(string(op), "success").Inc()

	reg := res.Region
	w.Header().Set("Content-Type", codec.ContentType(req.encodeAs))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Watermark-Size", res.Size.Variant.String())
	w.Header().Set("X-Watermark-Region", fmt.Sprintf("%d,%d,%d,%d", reg.Min.X, reg.Min.Y, reg.Dx(), reg.Dy()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("Failed to write image response", "error", err)
	}
}

// apply runs op and maps compositor errors to HTTP status codes.
func (s *Server) apply(op pipeline.Operation, req *request) (*image.NRGBA, watermark.Resolved, int, error) {
	res, err := s.compositor.Resolve(req.img.Bounds(), req.opts)
	if err != nil {
		return nil, watermark.Resolved{}, statusFor(err), err
	}

	start := time.Now()
	var out *image.NRGBA
	switch op {
	case pipeline.OpAdd:
		out, err = s.compositor.AddWatermark(req.img, req.opts)
	default:
		out, err = s.compositor.RemoveWatermark(req.img, req.opts)
	}
	operationDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, res, statusFor(err), err
	}
	return out, res, http.StatusOK, nil
}

// infoHandler reports size variant, footprint and a detection score.
func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, ok := s.parseUpload(w, r)
	if !ok {
		operationsTotal.WithLabelValues(opInfo, "error").Inc()
		return
	}

	start := time.Now()
	info := s.describe(req)
	operationDuration.WithLabelValues(opInfo).Observe(time.Since(start).Seconds())
	operationsTotal.WithLabelValues(opInfo, "success").Inc()

	s.writeJSON(w, http.StatusOK, InfoResponse{Success: true, Result: info, RequestID: requestID(r.Context())})
}

// describe never fails: an image too small for the footprint is reported
// with Fits false.
func (s *Server) describe(req *request) *InfoResult {
	b := req.img.Bounds()
	size := s.compositor.Detector().Detect(b.Dx(), b.Dy())
	if req.opts.ForceSize != nil {
		size = *req.opts.ForceSize
	}
	info := &InfoResult{
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: req.format,
		Size:   size.Variant.String(),
		Margin: size.Margin,
	}
	det, err := watermark.Detect(req.img, size)
	if err != nil {
		return info
	}
	// Detect works on an origin-anchored copy, so Region is already relative.
	info.Fits = true
	info.Detected = det.Present
	info.Score = det.Score
	info.Footprint = &Region{X: det.Region.Min.X, Y: det.Region.Min.Y, Width: det.Region.Dx(), Height: det.Region.Dy()}
	return info
}

// parseUpload reads the multipart "image" field and the optional "size",
// "format" and "quality" fields. On failure it writes the response itself.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (*request, bool) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeErrorResponse(w, r, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, r, "Failed to parse form data", http.StatusBadRequest)
		}
		return nil, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, r, "No image file provided", http.StatusBadRequest)
		return nil, false
	}
	defer func() { _ = file.Close() }()

	if header.Size > limit {
		s.writeErrorResponse(w, r, "File too large", http.StatusRequestEntityTooLarge)
		return nil, false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, r, "Failed to read image data", http.StatusInternalServerError)
		return nil, false
	}
	uploadSizeBytes.Observe(float64(len(data)))

	req, err := s.buildRequest(data, r.FormValue("size"), r.FormValue("format"), r.FormValue("quality"))
	if err != nil {
		s.writeErrorResponse(w, r, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return req, true
}

// buildRequest decodes an image and validates the optional parameters. It is
// shared by the HTTP and WebSocket paths.
func (s *Server) buildRequest(data []byte, size, format, quality string) (*request, error) {
	img, decoded, err := codec.DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("invalid image format: %w", err)
	}
	req := &request{img: img, format: decoded, quality: s.quality}

	if size = strings.TrimSpace(size); size != "" && !strings.EqualFold(size, "auto") {
		v, err := watermark.ParseSizeVariant(size)
		if err != nil {
			return nil, err
		}
		forced := s.compositor.Detector().ForVariant(v)
		req.opts.ForceSize = &forced
	}

	req.encodeAs, err = s.outputFormat(format, decoded)
	if err != nil {
		return nil, err
	}

	if quality != "" {
		q, err := strconv.Atoi(quality)
		if err != nil || q < 1 || q > 100 {
			return nil, fmt.Errorf("invalid quality %q (must be between 1 and 100)", quality)
		}
		req.quality = q
	}
	return req, nil
}

// outputFormat picks the requested encoder, else the upload's own format when
// it can be encoded, else PNG.
func (s *Server) outputFormat(requested, decoded string) (imaging.Format, error) {
	if requested != "" {
		return codec.FormatFromName(requested)
	}
	if f, err := codec.FormatFromName(decoded); err == nil {
		return f, nil
	}
	return imaging.PNG, nil
}

// statusFor maps geometry errors to 422 and everything else to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, watermark.ErrFootprintOutOfBounds), errors.Is(err, watermark.ErrShapeMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, watermark.ErrNilImage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{
		Success:   false,
		Error:     message,
		RequestID: requestID(r.Context()),
	})
}
