package validation

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"szenai/internal/errors"
)

func TestValidateChatID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"user chat", "628111@c.us", false},
		{"group chat", "120363025246125486@g.us", false},
		{"empty", "", true},
		{"too long", strings.Repeat("1", 257), true},
		{"newline", "628111@c.us\n", true},
		{"nul", "628\x00111@c.us", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChatID(tt.id)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
			assert.Equal(t, 400, errors.HTTPStatusCode(err))
		})
	}
}

func TestValidateMessageID(t *testing.T) {
	assert.NoError(t, ValidateMessageID("true_628111@c.us_3EB0C767D26A"))
	assert.Error(t, ValidateMessageID(""))
	assert.Error(t, ValidateMessageID("a\tb"))
}

func TestValidateSessionName(t *testing.T) {
	assert.NoError(t, ValidateSessionName("default"))
	assert.NoError(t, ValidateSessionName("shop_main-2"))
	assert.Error(t, ValidateSessionName(""))
	assert.Error(t, ValidateSessionName("a/b"))
	assert.Error(t, ValidateSessionName(strings.Repeat("s", 65)))
}

func TestValidateNumericRange(t *testing.T) {
	assert.NoError(t, ValidateNumericRange(5, "limit", 0, 10))
	assert.Error(t, ValidateNumericRange(-1, "limit", 0, 10))
	assert.Error(t, ValidateNumericRange(11, "limit", 0, 10))
	assert.NoError(t, ValidateTimeout(30, "timeout"))
	assert.Error(t, ValidateTimeout(0, "timeout"))
	assert.NoError(t, ValidateRetentionDays(30))
	assert.Error(t, ValidateRetentionDays(0))
}

type structFixture struct {
	ChatID string `json:"chatId" validate:"required,max=8"`
	Text   string `json:"text" validate:"notblank"`
	Order  string `json:"sortOrder" validate:"omitempty,oneof=asc desc"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name  string
		in    structFixture
		field string
	}{
		{"valid", structFixture{ChatID: "a@c.us", Text: "hi"}, ""},
		{"missing chat", structFixture{Text: "hi"}, "chatId"},
		{"blank text", structFixture{ChatID: "a", Text: "   "}, "text"},
		{"bad order", structFixture{ChatID: "a", Text: "hi", Order: "up"}, "sortOrder"},
		{"chat too long", structFixture{ChatID: "123456789", Text: "hi"}, "chatId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.in)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			appErr, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, errors.ErrCodeValidationFailed, appErr.Code)
			assert.Equal(t, tt.field, appErr.Context["field"])
			assert.Equal(t, http.StatusBadRequest, errors.HTTPStatusCode(err))
		})
	}
}
