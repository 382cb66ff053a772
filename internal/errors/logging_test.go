package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger() (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	base := logrus.New()
	base.SetOutput(buf)
	base.SetFormatter(&logrus.JSONFormatter{})
	return NewLogger(base), buf
}

func TestLogger_LogRetryableError_Levels(t *testing.T) {
	logger, buf := newBufferedLogger()

	logger.LogRetryableError(NewTransportError("list_chats", errors.New("timeout")), "upstream failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, string(ErrCodeTransport), entry["error_code"])
	assert.Equal(t, "list_chats", entry["operation"])

	buf.Reset()
	logger.LogRetryableError(New(ErrCodeValidationFailed, "bad"), "rejected")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
}

func TestFields_PlainError(t *testing.T) {
	assert.Empty(t, Fields(errors.New("plain")))
}
