package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/caption-pipeline/config"
	httpx "github.com/target/caption-pipeline/internal/http"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
	// ErrCh receives the listener error if the server stops unexpectedly.
	ErrCh chan<- error
}

// NewHTTPHandler builds the API router from the service container.
func NewHTTPHandler(cfg *config.AppConfig, services ServiceContainer, logger *slog.Logger) http.Handler {
	return httpx.NewRouter(httpx.RouterServices{
		Captions:     services.Captions,
		Callbacks:    services.Callbacks,
		Health:       services.Health,
		Logger:       logger,
		CallbackPath: cfg.Caption.CallbackPath,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	})
}

// StartHTTPServer starts serving in the background and returns the server for shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := cfg.Config.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           NewHTTPHandler(cfg.Config, cfg.Services, logger),
		ReadHeaderTimeout: cfg.Config.HTTP.ReadHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			if cfg.ErrCh != nil {
				select {
				case cfg.ErrCh <- fmt.Errorf("http server: %w", err):
				default:
				}
			}
		}
	}()

	return server
}

// ShutdownHTTPServer drains in-flight requests until ctx expires.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	if logger != nil {
		logger.Info("shutting down HTTP server")
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if logger != nil {
		logger.Info("HTTP server stopped")
	}
	return nil
}
