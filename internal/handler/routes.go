package handler

import (
	"github.com/labstack/echo/v4"
)

// SubmitPath is the single forwarding endpoint.
const SubmitPath = "/submit"

// RegisterRoutes wires all route handlers onto the Echo instance.
// Every method reaches the submit handler so that it, not the router, decides
// between preflight, 405 and forwarding.
func RegisterRoutes(e *echo.Echo, submit *SubmitHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	e.Any(SubmitPath, submit.Handle)
}
