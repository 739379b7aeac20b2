package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"webhook-proxy-go/internal/model"
	"webhook-proxy-go/internal/service"
)

// Forwarder relays a submission downstream. *service.ForwardService satisfies it.
type Forwarder interface {
	Forward(ctx context.Context, req *model.InboundRequest) (*model.ForwardResult, error)
}

// SubmitHandler serves /submit: preflight, method check, and forwarding.
// CORS headers are applied by middleware before it runs.
type SubmitHandler struct {
	forwarder Forwarder
	logger    *slog.Logger
}

// NewSubmitHandler creates a SubmitHandler.
func NewSubmitHandler(svc *service.ForwardService, logger *slog.Logger) *SubmitHandler {
	return newSubmitHandler(svc, logger)
}

func newSubmitHandler(f Forwarder, logger *slog.Logger) *SubmitHandler {
	return &SubmitHandler{
		forwarder: f,
		logger:    logger.With("component", "submit_handler"),
	}
}

// Handle answers OPTIONS with an empty 200, rejects anything but POST with
// 405, and forwards POST bodies downstream, replying with the downstream's
// status code and the normalized body.
func (h *SubmitHandler) Handle(c echo.Context) error {
	req := c.Request()

	switch req.Method {
	case http.MethodOptions:
		return c.NoContent(http.StatusOK)
	case http.MethodPost:
	default:
		return c.JSON(http.StatusMethodNotAllowed, model.ErrorResult("Method not allowed"))
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return c.JSON(http.StatusRequestEntityTooLarge, model.ErrorResult("Request body too large"))
		}
		return c.JSON(http.StatusBadRequest, model.ErrorResult("Could not read request body"))
	}

	res, err := h.forwarder.Forward(req.Context(), &model.InboundRequest{
		Method: req.Method,
		Origin: req.Header.Get(echo.HeaderOrigin),
		Body:   body,
	})
	if err != nil {
		return h.mapError(c, err)
	}

	return c.JSON(res.StatusCode, res.Body)
}

func (h *SubmitHandler) mapError(c echo.Context, err error) error {
	if errors.Is(err, service.ErrDownstreamNotConfigured) {
		h.logger.Error("downstream not configured", "err", err)
		return c.JSON(http.StatusInternalServerError, model.ErrorResult(err.Error()))
	}

	if errors.Is(err, service.ErrInvalidBody) {
		return c.JSON(http.StatusBadRequest, model.ErrorResult("Invalid JSON body"))
	}

	var te *service.TransportError
	if errors.As(err, &te) {
		h.logger.Error("proxy error",
			"err", te.Detail(),
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
		)
		return c.JSON(http.StatusInternalServerError, model.ErrorResult("Proxy error: "+te.Detail()))
	}

	h.logger.Error("proxy error", "err", err)
	return c.JSON(http.StatusInternalServerError, model.ErrorResult("Proxy error: "+err.Error()))
}
