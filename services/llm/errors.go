package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// upstreamError is a non-2xx answer from the upstream API. Status 0 means
// the request never got a response at all.
type upstreamError struct {
	status int
	msg    string
}

func (e *upstreamError) Error() string {
	if e.status == 0 {
		return e.msg
	}
	return fmt.Sprintf("upstream returned %d: %s", e.status, e.msg)
}

// newUpstreamError extracts the provider's message from an error body when
// one is present, falling back to the raw body.
func newUpstreamError(status int, body []byte) *upstreamError {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
	}
	return &upstreamError{status: status, msg: msg}
}

// transientStatuses are upstream HTTP statuses where a retry can help.
var transientStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// transientMarkers classify transport errors that carry no status code.
var transientMarkers = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"temporarily unavailable",
	"rate limit",
	"overloaded",
}

// isTransient reports whether err is connectivity-shaped (a retry may help)
// rather than request-shaped (a retry cannot help). Anything it does not
// recognize is treated as permanent.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *upstreamError
	if errors.As(err, &ue) && ue.status != 0 {
		return transientStatuses[ue.status]
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
