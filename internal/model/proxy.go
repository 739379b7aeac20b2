// Package model defines shared request-scoped types for the proxy.
package model

// Result status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// InboundRequest is a caller's submission as seen by the forwarding service.
type InboundRequest struct {
	Method string
	Origin string
	// Body is the raw JSON body; empty when the caller sent none.
	Body []byte
}

// DownstreamResponse is the webhook's reply, fully buffered.
type DownstreamResponse struct {
	StatusCode int
	Body       string
}

// Result is the JSON object returned to the caller. After normalization it
// always carries a "status" key.
type Result map[string]any

// ErrorResult builds the fixed {status:"error", message:...} body.
func ErrorResult(message string) Result {
	return Result{"status": StatusError, "message": message}
}

// ForwardResult pairs a normalized body with the HTTP status to send back.
type ForwardResult struct {
	StatusCode int
	Body       Result
}
