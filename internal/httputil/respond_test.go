package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"szenai/internal/errors"
	"szenai/internal/tracing"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusCreated, map[string]string{"ok": "yes"}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":"yes"}`, rec.Body.String())
}

func TestWriteRawJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteRawJSON(rec, http.StatusOK, []byte(`[1,2]`)))
	assert.Equal(t, `[1,2]`, rec.Body.String())
}

func TestWriteError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(tracing.WithRequestID(req.Context(), "req-1"))
	rec := httptest.NewRecorder()

	WriteError(rec, req, errors.NewValidationError("text", "", "text is required"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body errors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, errors.ErrCodeValidationFailed, body.Error.Code)
	assert.Equal(t, "req-1", body.RequestID)
}
