package httputil

import (
	"encoding/json"
	"net/http"

	"szenai/internal/errors"
	"szenai/internal/tracing"
)

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// WriteRawJSON writes an already encoded JSON body.
func WriteRawJSON(w http.ResponseWriter, status int, body []byte) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}

// WriteError renders err as the standard error body, with the status derived
// from its AppError code.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatusCode(err)
	_ = WriteJSON(w, status, errors.ToHTTPResponse(err, tracing.RequestID(r.Context())))
}
