package validation

import (
	"fmt"
	"unicode"

	"szenai/internal/constants"
	"szenai/internal/errors"
)

// ValidateChatID checks a chat id taken from a request path or body.
func ValidateChatID(chatID string) error {
	return validateIdentifier("chat ID", chatID, constants.MaxChatIDLength)
}

// ValidateMessageID checks a message id taken from a request path.
func ValidateMessageID(messageID string) error {
	return validateIdentifier("message ID", messageID, constants.MaxMessageIDLength)
}

func validateIdentifier(field, value string, maxLen int) error {
	if value == "" {
		return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("%s cannot be empty", field)).
			WithUserMessage(fmt.Sprintf("%s is required", field))
	}
	if len(value) > maxLen {
		msg := fmt.Sprintf("%s too long (max %d characters)", field, maxLen)
		return errors.New(errors.ErrCodeInvalidInput, msg).WithUserMessage(msg)
	}
	for _, char := range value {
		if unicode.IsControl(char) {
			msg := fmt.Sprintf("%s contains invalid characters", field)
			return errors.New(errors.ErrCodeInvalidInput, msg).WithUserMessage(msg)
		}
	}
	return nil
}

// ValidateSessionName validates session name format and length
func ValidateSessionName(sessionName string) error {
	if sessionName == "" {
		return errors.New(errors.ErrCodeInvalidInput, "session name cannot be empty")
	}

	if len(sessionName) > 64 {
		return errors.New(errors.ErrCodeInvalidInput, "session name too long (max 64 characters)")
	}

	// Session names end up in upstream paths unescaped
	for _, char := range sessionName {
		if !unicode.IsLetter(char) && !unicode.IsDigit(char) && char != '_' && char != '-' {
			return errors.New(errors.ErrCodeInvalidInput,
				"session name must contain only letters, numbers, underscores, and dashes")
		}
	}

	return nil
}

// ValidateNumericRange validates numeric values against bounds
func ValidateNumericRange(value int, fieldName string, min, max int) error {
	if value < min {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too small (min %d)", fieldName, min))
	}

	if value > max {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too large (max %d)", fieldName, max))
	}

	return nil
}

// ValidateTimeout validates timeout values
func ValidateTimeout(timeoutSec int, fieldName string) error {
	return ValidateNumericRange(timeoutSec, fieldName, 1, 3600)
}

// ValidateRetentionDays validates data retention period
func ValidateRetentionDays(days int) error {
	return ValidateNumericRange(days, "retention days", 1, 3650)
}
