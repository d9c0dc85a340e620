package httpclient

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionExpired is returned for any 401. By the time the caller
	// sees it the stored token is already evicted.
	ErrSessionExpired = errors.New("session expired")

	// ErrRequestTimeout is returned when the client-side abort fires,
	// regardless of the underlying transport error type.
	ErrRequestTimeout = errors.New("request timed out")
)

// APIError carries a non-2xx response. Message is the server-provided
// body text when present, otherwise a generic status-code message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

func newAPIError(status int, body []byte) *APIError {
	msg := string(body)
	if msg == "" {
		msg = fmt.Sprintf("API %d", status)
	}
	return &APIError{StatusCode: status, Message: msg}
}
