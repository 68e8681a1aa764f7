package apierror

import "fmt"

// Error is the JSON error body returned by the HTTP surfaces. Code doubles as
// the HTTP status.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WithDetail(code int, message, detail string) *Error {
	return &Error{Code: code, Message: message, Detail: detail}
}

// BadRequest covers validation failures scoped to a single request.
func BadRequest(message string) *Error {
	return New(400, message)
}

// Unauthorized covers authentication failures: bad signatures, expired
// timestamps, missing credentials.
func Unauthorized(message string) *Error {
	return New(401, message)
}

// Upstream covers synchronous failures of an external collaborator.
func Upstream(message string) *Error {
	return New(502, message)
}

func Internal(message string) *Error {
	return New(500, message)
}

func NotFound(resource string) *Error {
	return New(404, fmt.Sprintf("%s not found", resource))
}
