package enrich

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// StatusError is a non-2xx reply from the prediction endpoint.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Message)
}

// parseStatusError extracts a human-readable message from an error body.
func parseStatusError(statusCode int, body []byte) *StatusError {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		msg := errResp.Error
		if msg == "" {
			msg = errResp.Message
		}
		if msg != "" {
			return &StatusError{Code: statusCode, Message: msg}
		}
	}

	switch statusCode {
	case 401:
		return &StatusError{Code: statusCode, Message: "authentication failed, check the api key"}
	case 402:
		return &StatusError{Code: statusCode, Message: "subscription required"}
	case 429:
		return &StatusError{Code: statusCode, Message: "rate limited, daily request quota reached"}
	case 500:
		return &StatusError{Code: statusCode, Message: "internal server error on the prediction service"}
	case 502, 503:
		return &StatusError{Code: statusCode, Message: "prediction service temporarily unavailable"}
	}

	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return &StatusError{Code: statusCode, Message: s}
}

// friendlyError converts common network errors to short messages.
func friendlyError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "connection refused (is the service running?)"
	case strings.Contains(msg, "no such host"):
		return "host not found (check the URL)"
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return "connection timed out"
	case strings.Contains(msg, "EOF"):
		return "connection closed unexpectedly"
	case strings.Contains(msg, "reset by peer"):
		return "connection reset by server"
	}
	return msg
}

// ErrMalformed is returned when a 2xx body is not the expected JSON.
var ErrMalformed = errors.New("malformed response")
