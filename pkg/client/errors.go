package client

import (
	"errors"
	"fmt"
)

// ConnectivityMessage is shown for every failure that is not a structured
// rejection from the backend: transport errors, timeouts and malformed responses.
const ConnectivityMessage = "Could not reach the server. Check your connection and try again."

// HTTPError represents a non-2xx HTTP response that carried no structured error.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// RejectedError is a structured {"error": ...} reply to a well-formed call,
// e.g. a wrong code or an unknown phone. Message is the backend text verbatim.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return e.Message
}

// ProtocolError means the response did not have the expected shape.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "unexpected response: " + e.Reason
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// IsRejected reports whether err is a backend rejection.
func IsRejected(err error) bool {
	var rej *RejectedError
	return errors.As(err, &rej)
}

// UserMessage maps err to the text shown next to the step that failed.
// Rejections surface the backend's message; everything else is connectivity-class.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var rej *RejectedError
	if errors.As(err, &rej) && rej.Message != "" {
		return rej.Message
	}
	return ConnectivityMessage
}
