package validation

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"chatery/internal/constants"
	"chatery/internal/errors"
)

// ValidateSessionID validates session identifier format and length. Session
// IDs become directory names and URL path segments, so the character set is
// deliberately narrow.
func ValidateSessionID(sessionID string) error {
	if sessionID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "session id cannot be empty")
	}

	if len(sessionID) > constants.MaxSessionIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("session id too long (max %d characters)", constants.MaxSessionIDLength))
	}

	for _, char := range sessionID {
		if !unicode.IsLetter(char) && !unicode.IsDigit(char) && char != '_' && char != '-' {
			return errors.New(errors.ErrCodeInvalidInput,
				"session id must contain only letters, numbers, underscores, and dashes")
		}
	}

	return nil
}

// ValidateChatID validates chat identifier format. User chats carry a numeric
// part before the server suffix; groups are accepted as-is apart from length
// and control-character checks.
func ValidateChatID(chatID string) error {
	if chatID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "chat id cannot be empty")
	}

	if len(chatID) > constants.MaxChatIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("chat id too long (max %d characters)", constants.MaxChatIDLength))
	}

	if err := validateNoControlCharacters(chatID, "chat id"); err != nil {
		return err
	}

	if idx := strings.IndexByte(chatID, '@'); idx >= 0 {
		local := chatID[:idx]
		if strings.HasSuffix(chatID, "@g.us") {
			if local == "" {
				return errors.New(errors.ErrCodeInvalidInput, "group id missing local part")
			}
			return nil
		}
		return validatePhonePart(local)
	}

	// Bare phone numbers are accepted for recipient lookups.
	return validatePhonePart(strings.TrimPrefix(chatID, "+"))
}

func validatePhonePart(phone string) error {
	if len(phone) < constants.MinPhoneNumberLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number must be at least %d digits", constants.MinPhoneNumberLength))
	}

	if len(phone) > constants.MaxPhoneNumberLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number too long (max %d digits)", constants.MaxPhoneNumberLength))
	}

	for _, char := range phone {
		if !unicode.IsDigit(char) {
			return errors.New(errors.ErrCodeInvalidInput, "phone number must contain only digits")
		}
	}

	return nil
}

// ValidateMessageID validates message identifier format and length
func ValidateMessageID(messageID string) error {
	if messageID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "message id cannot be empty")
	}

	if len(messageID) > constants.MaxMessageIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("message id too long (max %d characters)", constants.MaxMessageIDLength))
	}

	return validateNoControlCharacters(messageID, "message id")
}

// ValidateWebhookURL validates a fan-out target URL. Only absolute http(s)
// URLs are accepted.
func ValidateWebhookURL(rawURL string) error {
	if rawURL == "" {
		return errors.New(errors.ErrCodeInvalidInput, "webhook url cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid webhook url")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New(errors.ErrCodeInvalidInput, "webhook url must use http or https")
	}

	if parsed.Host == "" {
		return errors.New(errors.ErrCodeInvalidInput, "webhook url missing host")
	}

	return nil
}

// ValidateHTTPRequestSize validates incoming HTTP request size
func ValidateHTTPRequestSize(r *http.Request, maxSizeBytes int64) error {
	if r.ContentLength < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "invalid content length")
	}

	if r.ContentLength > maxSizeBytes {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("request too large: %d bytes (max %d bytes)", r.ContentLength, maxSizeBytes))
	}

	return nil
}

// ValidateStringLength validates string length against bounds
func ValidateStringLength(value, fieldName string, minLength, maxLength int) error {
	if len(value) < minLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too short (min %d characters)", fieldName, minLength))
	}

	if len(value) > maxLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too long (max %d characters)", fieldName, maxLength))
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
	if timeoutSec < 1 {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s must be at least 1 second", fieldName))
	}

	if timeoutSec > 3600 { // Max 1 hour
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too large (max 3600 seconds)", fieldName))
	}

	return nil
}

func validateNoControlCharacters(value, fieldName string) error {
	for _, char := range value {
		if char == '\x00' || char == '\n' || char == '\r' || char == '\t' {
			return errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("%s contains invalid characters", fieldName))
		}
	}
	return nil
}
