package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskChatID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"628111234567@c.us", "********4567@c.us"},
		{"123@g.us", "***@g.us"},
		{"status@broadcast", "**atus@broadcast"},
		{"abcdefgh", "****efgh"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskChatID(tt.in), tt.in)
	}
}

func TestMaskMessageID(t *testing.T) {
	assert.Equal(t, "", MaskMessageID(""))
	assert.Equal(t, "true_********4567@c.us_********D26A", MaskMessageID("true_628111234567@c.us_3EB0C767D26A"))
	assert.Equal(t, "****", MaskMessageID("msg1"))
	assert.Equal(t, "**********12345678", MaskMessageID("abcdefghij12345678"))
}

func TestMaskText(t *testing.T) {
	assert.Equal(t, "", MaskText(""))
	assert.Equal(t, "[2 chars]", MaskText("hi"))
	assert.Equal(t, "[3 chars]", MaskText("héé"))
}

func TestMaskerVerbose(t *testing.T) {
	quiet := Masker{}
	verbose := Masker{Verbose: true}

	assert.Equal(t, "628111@c.us", verbose.ChatID("628111@c.us"))
	assert.Equal(t, "**8111@c.us", quiet.ChatID("628111@c.us"))
	assert.Equal(t, "hi", verbose.Text("hi"))
	assert.Equal(t, "[2 chars]", quiet.Text("hi"))
	assert.Equal(t, "msg1", verbose.MessageID("msg1"))
}

func TestMaskSensitiveFields(t *testing.T) {
	assert.Nil(t, MaskSensitiveFields(nil))

	out := MaskSensitiveFields(map[string]interface{}{
		"chat_id":    "628111@c.us",
		"message_id": "msg1",
		"text":       "hello",
		"status":     200,
		"operation":  "send",
	})
	assert.Equal(t, "**8111@c.us", out["chat_id"])
	assert.Equal(t, "****", out["message_id"])
	assert.Equal(t, "[5 chars]", out["text"])
	assert.Equal(t, 200, out["status"])
	assert.Equal(t, "send", out["operation"])
}
