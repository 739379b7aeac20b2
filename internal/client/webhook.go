// Package client provides the outbound HTTP client for the downstream webhook.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"webhook-proxy-go/internal/config"
	"webhook-proxy-go/internal/metrics"
	"webhook-proxy-go/internal/model"
)

const userAgent = "webhook-proxy-go/1.0"

// WebhookClient posts JSON payloads to the downstream webhook.
type WebhookClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	maxBody    int64
}

// NewWebhookClient creates a WebhookClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable downstream metrics recording.
func NewWebhookClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *WebhookClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Downstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Downstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &WebhookClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Downstream.TimeoutSeconds) * time.Second,
		},
		logger:  logger.With("component", "webhook_client"),
		metrics: m,
		maxBody: cfg.Downstream.ResponseMaxBytes,
	}
}

// PostJSON sends payload to url and buffers the whole response.
// The context bounds the call together with the client timeout: a client
// disconnect cancels the downstream request.
func (c *WebhookClient) PostJSON(ctx context.Context, url string, payload []byte) (*model.DownstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build downstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("downstream request", "bytes", len(payload))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(start, 0)
		return nil, fmt.Errorf("downstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := c.readBody(resp.Body)
	c.observe(start, resp.StatusCode)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("downstream response",
		"status", resp.StatusCode,
		"bytes", len(body),
	)

	return &model.DownstreamResponse{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}, nil
}

// readBody reads at most maxBody bytes; a longer body is an error rather than
// a silently truncated payload.
func (c *WebhookClient) readBody(r io.Reader) ([]byte, error) {
	if c.maxBody <= 0 {
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read downstream response: %w", err)
		}
		return body, nil
	}

	body, err := io.ReadAll(io.LimitReader(r, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read downstream response: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("downstream response exceeds %d bytes", c.maxBody)
	}
	return body, nil
}

// observe records call latency, and the status code once a response arrived.
func (c *WebhookClient) observe(start time.Time, status int) {
	if c.metrics == nil {
		return
	}
	c.metrics.DownstreamDuration.Observe(time.Since(start).Seconds())
	if status == 0 {
		c.metrics.DownstreamFailures.Inc()
		return
	}
	c.metrics.DownstreamResponses.WithLabelValues(strconv.Itoa(status)).Inc()
}
