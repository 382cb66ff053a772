package privacy

import (
	"strconv"
	"strings"
)

// MaskChatID keeps the server suffix and the last four characters of the user part.
// Example: "628111234567@c.us" -> "********4567@c.us"
func MaskChatID(chatID string) string {
	if chatID == "" {
		return ""
	}
	if user, server, ok := strings.Cut(chatID, "@"); ok {
		return maskString(user, 4) + "@" + server
	}
	return maskString(chatID, 4)
}

// MaskMessageID masks the chat and key parts of a serialized message id.
// Example: "true_628111234567@c.us_3EB0C767D26A" -> "true_********4567@c.us_********D26A"
func MaskMessageID(messageID string) string {
	if messageID == "" {
		return ""
	}
	parts := strings.SplitN(messageID, "_", 3)
	if len(parts) == 3 && (parts[0] == "true" || parts[0] == "false") {
		return parts[0] + "_" + MaskChatID(parts[1]) + "_" + maskString(parts[2], 4)
	}
	return maskString(messageID, 8)
}

// MaskText replaces message text with its length.
func MaskText(text string) string {
	if text == "" {
		return ""
	}
	return "[" + strconv.Itoa(len([]rune(text))) + " chars]"
}

// Masker applies masking unless verbose logging is enabled.
type Masker struct {
	Verbose bool
}

func (m Masker) ChatID(id string) string {
	if m.Verbose {
		return id
	}
	return MaskChatID(id)
}

func (m Masker) MessageID(id string) string {
	if m.Verbose {
		return id
	}
	return MaskMessageID(id)
}

func (m Masker) Text(text string) string {
	if m.Verbose {
		return text
	}
	return MaskText(text)
}

// MaskSensitiveFields masks the known identifier keys of a log field map.
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}
	masked := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		s, isString := v.(string)
		switch {
		case !isString:
			masked[k] = v
		case k == "chat_id" || k == "chatId":
			masked[k] = MaskChatID(s)
		case k == "message_id" || k == "messageId":
			masked[k] = MaskMessageID(s)
		case k == "text" || k == "body":
			masked[k] = MaskText(s)
		default:
			masked[k] = v
		}
	}
	return masked
}

func maskString(s string, keepLast int) string {
	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}
