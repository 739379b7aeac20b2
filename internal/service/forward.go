// Package service implements the forwarding logic between callers and the downstream webhook.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"webhook-proxy-go/internal/client"
	"webhook-proxy-go/internal/config"
	"webhook-proxy-go/internal/metrics"
	"webhook-proxy-go/internal/model"
)

// ErrDownstreamNotConfigured is returned when no downstream URL is configured.
// Its text is sent to callers verbatim.
var ErrDownstreamNotConfigured = errors.New(config.DownstreamURLEnv + " env var not set")

// ErrInvalidBody is returned when the inbound body is present but is not JSON.
var ErrInvalidBody = errors.New("invalid JSON body")

// TransportError reports a failure to obtain a response from the downstream.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "forward to downstream: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Detail describes the failure without the downstream URL, which can carry a
// deployment secret.
func (e *TransportError) Detail() string {
	var urlErr *url.Error
	if errors.As(e.Err, &urlErr) {
		return urlErr.Err.Error()
	}
	return e.Err.Error()
}

// Poster sends a JSON payload to a URL. *client.WebhookClient satisfies it.
type Poster interface {
	PostJSON(ctx context.Context, url string, payload []byte) (*model.DownstreamResponse, error)
}

var _ Poster = (*client.WebhookClient)(nil)

// ForwardService relays submissions to the configured downstream webhook.
type ForwardService struct {
	poster  Poster
	url     string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewForwardService creates a ForwardService. The metrics parameter is optional.
func NewForwardService(c *client.WebhookClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *ForwardService {
	return newForwardService(c, cfg.Downstream.URL, logger, m)
}

func newForwardService(p Poster, downstreamURL string, logger *slog.Logger, m *metrics.Metrics) *ForwardService {
	return &ForwardService{
		poster:  p,
		url:     downstreamURL,
		logger:  logger.With("component", "forward_service"),
		metrics: m,
	}
}

// Configured reports whether a downstream URL is set.
func (s *ForwardService) Configured() bool {
	return s.url != ""
}

// Forward sends the request body to the downstream once and normalizes the reply.
// The returned status code is the downstream's, passed through unchanged.
//
// Errors: ErrDownstreamNotConfigured (no call attempted), ErrInvalidBody, or
// *TransportError.
func (s *ForwardService) Forward(ctx context.Context, req *model.InboundRequest) (*model.ForwardResult, error) {
	if !s.Configured() {
		return nil, ErrDownstreamNotConfigured
	}

	payload, err := encodePayload(req.Body)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("forwarding submission",
		"origin", req.Origin,
		"bytes", len(payload),
	)

	resp, err := s.poster.PostJSON(ctx, s.url, payload)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	body, shape := Normalize(resp)
	s.observe(body, shape)

	return &model.ForwardResult{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// encodePayload returns the compacted JSON body, substituting {} for an empty
// or null body.
func encodePayload(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return buf.Bytes(), nil
}

func (s *ForwardService) observe(body model.Result, shape string) {
	if s.metrics == nil {
		return
	}
	status := "other"
	switch body["status"] {
	case model.StatusSuccess:
		status = model.StatusSuccess
	case model.StatusError:
		status = model.StatusError
	}
	s.metrics.Results.WithLabelValues(status, shape).Inc()
}
