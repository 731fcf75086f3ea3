package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/MeKo-Tech/unmark/internal/server"
	"github.com/spf13/cobra"
)

func (a *app) newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP server for the watermark API",
		Long: `Start an HTTP server that provides REST and WebSocket endpoints around the
compositor.

The server provides the following endpoints:
  POST /watermark/remove - Remove the mark from an uploaded image
  POST /watermark/add    - Composite the mark onto an uploaded image
  POST /watermark/info   - Footprint and detection score as JSON
  GET  /ws               - WebSocket streaming of the same operations
  GET  /health           - Health check endpoint
  GET  /metrics          - Prometheus metrics

Examples:
  unmark serve
  unmark serve --port 8080
  unmark serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}

	cmd.Flags().StringP("host", "H", "localhost", "server host")
	cmd.Flags().IntP("port", "p", 8080, "server port")
	cmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	cmd.Flags().Int64("max-upload-size", 50, "maximum upload size in MB")
	cmd.Flags().Int("timeout", 30, "request timeout in seconds")
	cmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	cmd.Flags().Int("quality", 100, "default JPEG quality of responses (1-100)")
	cmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	cmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	cmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	cmd.Flags().Int64("max-mb-per-day", 1024, "maximum uploaded MB per day per client")
	addCompositorFlags(cmd)
	return cmd
}

// serverConfig resolves the server settings: flags over configuration.
func (a *app) serverConfig(cmd *cobra.Command) (server.Config, time.Duration, error) {
	cfg := a.config()
	flags := cmd.Flags()

	host := cfg.Server.Host
	if flags.Changed("host") {
		host, _ = flags.GetString("host")
	}

	port := cfg.Server.Port
	if flags.Changed("port") {
		port, _ = flags.GetInt("port")
	}

	corsOrigin := cfg.Server.CORSOrigin
	if flags.Changed("cors-origin") {
		corsOrigin, _ = flags.GetString("cors-origin")
	}

	maxUploadSize := cfg.Server.MaxUploadMB
	if flags.Changed("max-upload-size") {
		maxUploadSize, _ = flags.GetInt64("max-upload-size")
	}

	timeout := cfg.Server.TimeoutSec
	if flags.Changed("timeout") {
		timeout, _ = flags.GetInt("timeout")
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if flags.Changed("shutdown-timeout") {
		shutdownTimeout, _ = flags.GetInt("shutdown-timeout")
	}

	quality := cfg.Output.Quality
	if flags.Changed("quality") {
		quality, _ = flags.GetInt("quality")
	}

	rl := cfg.Server.RateLimit
	if flags.Changed("rate-limit-enabled") {
		rl.Enabled, _ = flags.GetBool("rate-limit-enabled")
	}
	if flags.Changed("requests-per-minute") {
		rl.RequestsPerMinute, _ = flags.GetInt("requests-per-minute")
	}
	if flags.Changed("requests-per-hour") {
		rl.RequestsPerHour, _ = flags.GetInt("requests-per-hour")
	}
	if flags.Changed("max-mb-per-day") {
		rl.MaxMBPerDay, _ = flags.GetInt64("max-mb-per-day")
	}

	if port < 0 || port > 65535 {
		return server.Config{}, 0, fmt.Errorf("invalid port %d (must be between 0 and 65535)", port)
	}
	if quality < 1 || quality > 100 {
		return server.Config{}, 0, fmt.Errorf("invalid quality %d (must be between 1 and 100)", quality)
	}
	if shutdownTimeout <= 0 {
		return server.Config{}, 0, errors.New("shutdown timeout must be positive")
	}

	comp, _, err := a.compositorFor(cmd)
	if err != nil {
		return server.Config{}, 0, err
	}

	return server.Config{
		Host:        host,
		Port:        port,
		CORSOrigin:  corsOrigin,
		MaxUploadMB: maxUploadSize,
		TimeoutSec:  timeout,
		Quality:     quality,
		RateLimit: server.RateLimitConfig{
			Enabled:           rl.Enabled,
			RequestsPerMinute: rl.RequestsPerMinute,
			RequestsPerHour:   rl.RequestsPerHour,
			MaxBytesPerDay:    rl.MaxMBPerDay * 1024 * 1024,
		},
		Compositor: comp,
		Logger:     a.log(),
	}, time.Duration(shutdownTimeout) * time.Second, nil
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	serverConfig, shutdownTimeout, err := a.serverConfig(cmd)
	if err != nil {
		return err
	}
	logger := a.log()

	apiServer, err := server.NewServer(serverConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer func() { _ = apiServer.Close() }()

	timeout := time.Duration(serverConfig.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              serverConfig.Addr(),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout + 5*time.Second,
	}

	ln, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", httpServer.Addr, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting watermark server", "addr", ln.Addr().String(),
			"rate_limit", serverConfig.RateLimit.Enabled)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	ctx := cmd.Context()
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err, ok := <-serveErr:
		if ok {
			logger.Error("Server error", "error", err)
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Graceful shutdown completed")
	return nil
}
