package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"webhook-proxy-go/internal/model"
)

// ErrorHandler returns an Echo HTTPErrorHandler that renders errors escaping
// the handlers (router 404 and 405, body limit, recovered panics) in the same
// {status:"error", message:...} shape the proxy uses everywhere else.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
		} else {
			logger.Error("unhandled error", "err", err, "path", c.Request().URL.Path)
		}

		message := http.StatusText(code)
		switch code {
		case http.StatusMethodNotAllowed:
			message = "Method not allowed"
		case http.StatusRequestEntityTooLarge:
			message = "Request body too large"
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, model.ErrorResult(message))
		}
		if werr != nil {
			logger.Error("write error response", "err", werr)
		}
	}
}
