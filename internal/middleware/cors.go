package middleware

import (
	"github.com/labstack/echo/v4"
)

const (
	corsAllowMethods = "POST,OPTIONS"
	corsAllowHeaders = "Content-Type"
)

// CORS returns an Echo middleware applying an origin allow-list.
//
// A request whose Origin exactly matches an allowed origin gets that origin
// echoed in Access-Control-Allow-Origin; any other request gets no
// Access-Control-Allow-Origin at all, leaving the browser to block it. Vary,
// Allow-Methods and Allow-Headers are set on every response. Headers are
// written before the handler runs so error responses carry them too.
//
// Preflight requests are not answered here; the handler owns OPTIONS.
func CORS(allowedOrigins []string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			if origin := c.Request().Header.Get(echo.HeaderOrigin); origin != "" {
				if _, ok := allowed[origin]; ok {
					h.Set(echo.HeaderAccessControlAllowOrigin, origin)
				}
			}

			h.Add(echo.HeaderVary, echo.HeaderOrigin)
			h.Set(echo.HeaderAccessControlAllowMethods, corsAllowMethods)
			h.Set(echo.HeaderAccessControlAllowHeaders, corsAllowHeaders)

			return next(c)
		}
	}
}
