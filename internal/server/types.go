package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/unmark/internal/watermark"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	compositor  *watermark.Compositor
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	quality     int
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	// Quality is the default JPEG quality for responses.
	Quality    int
	RateLimit  RateLimitConfig
	Compositor *watermark.Compositor
	Logger     *slog.Logger
}

// RateLimitConfig holds per-client limits. Zero disables a single limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxBytesPerDay    int64
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// Region is a footprint rectangle in image coordinates.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// InfoResult describes where the mark sits in an uploaded image.
type InfoResult struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Format    string  `json:"format"`
	Size      string  `json:"size"`
	Margin    int     `json:"margin"`
	Footprint *Region `json:"footprint,omitempty"`
	Fits      bool    `json:"fits"`
	Detected  bool    `json:"detected"`
	Score     float64 `json:"score"`
}

// InfoResponse is returned by /watermark/info.
type InfoResponse struct {
	Success   bool        `json:"success"`
	Result    *InfoResult `json:"result,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewServer creates a server around a compositor. A nil compositor gets the
// default one.
func NewServer(config Config) (*Server, error) {
	comp := config.Compositor
	if comp == nil {
		var err error
		if comp, err = watermark.NewCompositor(); err != nil {
			return nil, err
		}
	}
	if config.MaxUploadMB <= 0 {
		return nil, errors.New("max upload size must be positive")
	}
	if config.TimeoutSec <= 0 {
		return nil, errors.New("timeout must be positive")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		compositor:  comp,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeout:     time.Duration(config.TimeoutSec) * time.Second,
		quality:     config.Quality,
		logger:      logger,
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxBytesPerDay)
	}
	return s, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/watermark/remove", s.corsMiddleware(s.rateLimitMiddleware(s.withTimeout(s.removeHandler))))
	mux.HandleFunc("/watermark/add", s.corsMiddleware(s.rateLimitMiddleware(s.withTimeout(s.addHandler))))
	mux.HandleFunc("/watermark/info", s.corsMiddleware(s.rateLimitMiddleware(s.withTimeout(s.infoHandler))))
	mux.HandleFunc("/ws", s.rateLimitMiddleware(s.webSocketHandler))
	mux.Handle("/metrics", metricsHandler())
}

// Handler returns a mux with all routes installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
