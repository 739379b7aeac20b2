// Package app assembles the proxy's dependency graph. Both the long-running
// server and the Lambda entry point build on Module.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"webhook-proxy-go/internal/client"
	"webhook-proxy-go/internal/config"
	"webhook-proxy-go/internal/handler"
	"webhook-proxy-go/internal/metrics"
	"webhook-proxy-go/internal/middleware"
	"webhook-proxy-go/internal/service"
)

// Module provides every component and registers the routes on the Echo instance.
func Module(cli *config.CLI, v handler.Version) fx.Option {
	return fx.Options(
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With("component", "fx")}
		}),
		fx.Provide(
			func() *config.CLI { return cli },
			func() handler.Version { return v },
			config.Load,
			NewLogger,
			metrics.New,
			NewEcho,
			client.NewWebhookClient,
			service.NewForwardService,
			handler.NewSubmitHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, registerMetrics, warnConfigPermissions, warnUnconfigured),
	)
}

// NewLogger builds the process logger from the log section of the config.
func NewLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

// NewEcho creates the Echo instance with the full middleware chain.
// CORS and security headers sit ahead of the body limit so a rejected
// oversize body still reaches the browser as a readable response.
func NewEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(logger)

	// Inbound timeouts to mitigate slow-client attacks. Responses are
	// buffered, so the write deadline only has to outlast the downstream call.
	downstreamTimeout := time.Duration(cfg.Downstream.TimeoutSeconds) * time.Second
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = downstreamTimeout + 10*time.Second
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(logger))
	if cfg.Metrics.Enabled {
		e.Use(middleware.MetricsMiddleware(m, cfg.Metrics.Path))
	}
	e.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))

	return e
}

func registerMetrics(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) {
	if !cfg.Metrics.Enabled {
		return
	}
	e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	logger.Info("metrics enabled", "path", cfg.Metrics.Path)
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

// warnUnconfigured flags a missing downstream URL at startup. The process still
// starts; each POST then answers 500 until the environment is fixed.
func warnUnconfigured(cfg *config.Config, logger *slog.Logger) {
	if cfg.Downstream.URL == "" {
		logger.Warn("downstream URL not set; submissions will fail", "env", config.DownstreamURLEnv)
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		logger.Warn("CORS allow-list is empty; browsers will block every cross-origin caller")
	}
}
