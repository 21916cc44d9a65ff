package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/buger/jsonparser"
)

// Error is returned for non-2xx replies.
type Error struct {
	Status int
	// Message is the server-provided explanation, if any.
	Message string
	Body    []byte
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: status %d", e.Status)
}

// Unauthorized reports a rejected credential.
func (e *Error) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// messageKeys are tried in order when extracting a server message.
var messageKeys = []string{"message", "detail", "error"}

func newError(status int, body []byte) *Error {
	return &Error{Status: status, Message: extractMessage(body), Body: body}
}

func extractMessage(body []byte) string {
	for _, key := range messageKeys {
		if msg, err := jsonparser.GetString(body, key); err == nil && strings.TrimSpace(msg) != "" {
			return strings.TrimSpace(msg)
		}
	}
	if msg, err := jsonparser.GetString(body, "non_field_errors", "[0]"); err == nil {
		return strings.TrimSpace(msg)
	}
	return ""
}

// MessageOf returns the server message carried by err, or fallback.
func MessageOf(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
