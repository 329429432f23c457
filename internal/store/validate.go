package store

import "unicode/utf8"

// MaxMessageLen is the longest message accepted, in characters.
const MaxMessageLen = 200

// ValidateMessage enforces the message rules: required, at most
// MaxMessageLen characters, ASCII letters, digits and spaces only.
func ValidateMessage(msg string) error {
	if msg == "" {
		return &ValidationError{Field: "message", Reason: "message is required"}
	}
	if utf8.RuneCountInString(msg) > MaxMessageLen {
		return &ValidationError{Field: "message", Reason: "max 200 characters"}
	}
	for _, r := range msg {
		if !isMessageRune(r) {
			return &ValidationError{Field: "message", Reason: "no special characters"}
		}
	}
	return nil
}

func isMessageRune(r rune) bool {
	return r == ' ' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
