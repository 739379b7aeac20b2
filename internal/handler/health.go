package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"webhook-proxy-go/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status reports build and configuration state. The downstream URL itself is
// not exposed; only whether one is set.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":                "ok",
		"version":               string(h.version),
		"downstream_configured": h.cfg.Downstream.URL != "",
		"allowed_origins":       len(h.cfg.CORS.AllowedOrigins),
	})
}
