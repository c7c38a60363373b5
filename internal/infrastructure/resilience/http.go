package resilience

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// StatusError is a non-2xx response from an upstream HTTP provider. Its text
// carries "status <code>" so message-based classifiers can see the code.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s: status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Operation, e.StatusCode, body)
}

// NewStatusError reads a bounded slice of the body for diagnostics.
func NewStatusError(operation string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Operation: operation, StatusCode: resp.StatusCode, Body: string(body)}
}

func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// ClassifyHTTPError retries network faults and retryable statuses, and keeps
// 4xx answers out of breaker failure counts.
func ClassifyHTTPError(err error) ErrorClassification {
	if class, ok := ClassifyContext(err); ok {
		return class
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return ClassifyStatus(statusErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}
	return Fault
}

// ClassifyStatus maps an upstream HTTP status to a classification.
func ClassifyStatus(statusCode int) ErrorClassification {
	if IsRetryableHTTPStatus(statusCode) {
		return Transient
	}
	return Rejected
}
