package sentiment

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrMessageFailed is the user-facing message after every attempt failed
const ErrMessageFailed = "Failed to analyze sentiment. Please try again later."

// maxErrorBody bounds how much of an error response is read
const maxErrorBody = 4096

// NetworkError is a transport-level failure reaching the endpoint
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response from the endpoint
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string { return e.Message }

// NewHTTPError builds "HTTP error! status: N" and appends the body's message,
// Message or raw text when present
func NewHTTPError(statusCode int, body []byte) *HTTPError {
	msg := fmt.Sprintf("HTTP error! status: %d", statusCode)
	if detail := bodyMessage(body); detail != "" {
		msg += " - " + detail
	}
	return &HTTPError{StatusCode: statusCode, Message: msg}
}

func bodyMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err == nil {
		for _, key := range []string{"message", "Message"} {
			if m, ok := fields[key].(string); ok && m != "" {
				return m
			}
		}
	}
	return trimmed
}
