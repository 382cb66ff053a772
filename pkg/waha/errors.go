package waha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker/v2"
)

// UpstreamError reports a response from WAHA that could not be used: either a
// non-2xx status, or a 2xx body that failed validation (Malformed, reported
// as 502).
type UpstreamError struct {
	Operation  string
	StatusCode int
	Body       []byte
	Header     http.Header
	Malformed  bool
	Reason     string
}

func (e *UpstreamError) Error() string {
	if e.Malformed {
		return fmt.Sprintf("waha %s: malformed upstream response: %s", e.Operation, e.Reason)
	}
	return fmt.Sprintf("waha %s: upstream responded with status %d", e.Operation, e.StatusCode)
}

// Message returns the upstream's own error text, when its body carries one.
func (e *UpstreamError) Message() string {
	var body struct {
		Error   interface{} `json:"error"`
		Message interface{} `json:"message"`
	}
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return ""
	}
	for _, v := range []interface{}{body.Message, body.Error} {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// TransportError reports a request that produced no response. Cause is kept
// for logging and is not part of the message.
type TransportError struct {
	Operation   string
	Cause       error
	CircuitOpen bool
	Timeout     bool
}

func (e *TransportError) Error() string {
	switch {
	case e.CircuitOpen:
		return fmt.Sprintf("waha %s: circuit open, upstream calls suspended", e.Operation)
	case e.Timeout:
		return fmt.Sprintf("waha %s: upstream timed out", e.Operation)
	default:
		return fmt.Sprintf("waha %s: no response from upstream", e.Operation)
	}
}

func (e *TransportError) Unwrap() error { return e.Cause }

// RequestSetupError reports a request that could not be built.
type RequestSetupError struct {
	Operation string
	Cause     error
}

func (e *RequestSetupError) Error() string {
	return fmt.Sprintf("waha %s: failed to build request: %v", e.Operation, e.Cause)
}

func (e *RequestSetupError) Unwrap() error { return e.Cause }

// IsRetryable reports whether err is a transient upstream failure: a
// transport failure, or a 5xx/429 response. Malformed payloads, open circuits
// and cancelled contexts are final.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return !te.CircuitOpen && !errors.Is(te.Cause, context.Canceled)
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return !ue.Malformed && (ue.StatusCode >= 500 || ue.StatusCode == http.StatusTooManyRequests)
	}
	return false
}

// newTransportError strips the request URL from client errors so that the
// base address never reaches an error string.
func newTransportError(operation string, err error) *TransportError {
	te := &TransportError{Operation: operation, Cause: err}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		te.CircuitOpen = true
		return te
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		te.Cause = ue.Err
		te.Timeout = ue.Timeout()
	}
	var ne net.Error
	if errors.As(te.Cause, &ne) && ne.Timeout() {
		te.Timeout = true
	}
	if errors.Is(te.Cause, context.DeadlineExceeded) {
		te.Timeout = true
	}
	return te
}
