package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// StatusError is a non-2xx provider response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm: upstream %d: %s", e.Code, e.Message)
}

// IsRetryable classifies an error from a provider call. Retryable:
// transient network errors, HTTP 408/429/5xx, anything that reads as a
// timeout, and JSON parse failures (possible transient API
// instability). Everything else is fatal and aborts immediately.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return shouldRetryStatus(statusErr.Code)
	}

	if isTransientNetError(err) {
		return true
	}

	// Malformed JSON from the provider may be transient flakiness.
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timed out") || strings.Contains(errStr, "timeout")
}

// isTransientNetError determines whether a network error is worth
// retrying.
func isTransientNetError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		// Dial errors are usually retryable (connection refused, etc.);
		// read/write errors might also be.
		switch opErr.Op {
		case "dial", "read", "write":
			return true
		}
	}

	// Sometimes necessary for errors wrapped without type information.
	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"temporary failure",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// shouldRetryStatus returns true if the HTTP status code indicates the
// request should be retried.
func shouldRetryStatus(status int) bool {
	switch {
	case status == http.StatusTooManyRequests: // 429
		return true
	case status == http.StatusRequestTimeout: // 408
		return true
	case status >= 500 && status <= 599:
		return true
	default:
		// 4xx client errors and everything else - don't retry
		return false
	}
}
