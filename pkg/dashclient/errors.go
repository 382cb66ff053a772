package dashclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx answer from the proxy.
type APIError struct {
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d", e.Status)
}

// NetworkError is a request that produced no HTTP response.
type NetworkError struct {
	Message string
	Cause   error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Message
}

func (e *NetworkError) Unwrap() error { return e.Cause }

func isRetryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return !errors.Is(err, context.Canceled)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || apiErr.Status == http.StatusTooManyRequests
	}
	return false
}

// UserMessage returns a short text suitable for showing to an end user.
// Response bodies are never included.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The request timed out. Please try again."
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return "Network error. Please check your connection and try again."
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusBadRequest:
			return "The request was invalid. Please check your input."
		case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
			return "You are not allowed to perform this action."
		case apiErr.Status == http.StatusNotFound:
			return "The requested chat or message was not found."
		case apiErr.Status == http.StatusTooManyRequests:
			return "Too many requests. Please wait a moment and try again."
		case apiErr.Status >= 500:
			return "WhatsApp is temporarily unavailable. Please try again."
		}
	}
	return "Something went wrong. Please try again."
}
