// Package errors carries application errors across service boundaries with
// an HTTP status code, a stable machine-readable reason and human message.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// UnknownCode is the fallback status code for errors without an explicit code.
const UnknownCode = http.StatusInternalServerError

// UnknownReason is the fallback machine-readable reason.
const UnknownReason = "UNKNOWN"

// Status is the JSON-serializable error body: { code, reason, message, metadata }.
type Status struct {
	Code     int32             `json:"code"`
	Reason   string            `json:"reason,omitempty"`
	Message  string            `json:"message,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Error is an application error. The embedded Status is what serializes
// to API responses; cause keeps the original error for errors.Is/As.
type Error struct {
	Status
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("error: code = %d reason = %s message = %s metadata = %v cause = %v",
		e.Code, e.Reason, e.Message, e.Metadata, e.cause)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.cause }

// Is matches on code and reason, so sentinel application errors can be
// compared with errors.Is regardless of message or metadata.
func (e *Error) Is(err error) bool {
	if se := new(Error); errors.As(err, &se) {
		return se.Code == e.Code && se.Reason == e.Reason
	}
	return false
}

// WithCause returns a copy carrying the underlying cause.
func (e *Error) WithCause(cause error) *Error {
	err := Clone(e)
	err.cause = cause
	return err
}

// WithMetadata returns a copy carrying the given metadata.
func (e *Error) WithMetadata(md map[string]string) *Error {
	err := Clone(e)
	err.Metadata = md
	return err
}

// New returns an application error with the given HTTP code, reason and message.
func New(code int, reason, message string) *Error {
	return &Error{Status: Status{Code: int32(code), Reason: reason, Message: message}}
}

// Newf is New with fmt.Sprintf formatting for the message.
func Newf(code int, reason, format string, a ...any) *Error {
	return New(code, reason, fmt.Sprintf(format, a...))
}

// Clone deep-copies err, including metadata.
func Clone(err *Error) *Error {
	if err == nil {
		return nil
	}
	var metadata map[string]string
	if err.Metadata != nil {
		metadata = make(map[string]string, len(err.Metadata))
		for k, v := range err.Metadata {
			metadata[k] = v
		}
	}
	return &Error{
		Status: Status{Code: err.Code, Reason: err.Reason, Message: err.Message, Metadata: metadata},
		cause:  err.cause,
	}
}

// FromError converts any error into an *Error. nil maps to nil; an error
// that is not an *Error is wrapped with UnknownCode/UnknownReason.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	if se := new(Error); errors.As(err, &se) {
		return se
	}
	return New(UnknownCode, UnknownReason, err.Error())
}

// Code returns the HTTP code of err, or 200 for nil.
func Code(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return int(FromError(err).Code)
}

// Reason returns the reason of err, or UnknownReason when absent.
func Reason(err error) string {
	if err == nil {
		return UnknownReason
	}
	return FromError(err).Reason
}

func BadRequest(reason, message string) *Error {
	return New(http.StatusBadRequest, reason, message)
}

func Unauthorized(reason, message string) *Error {
	return New(http.StatusUnauthorized, reason, message)
}

func Forbidden(reason, message string) *Error {
	return New(http.StatusForbidden, reason, message)
}

func NotFound(reason, message string) *Error {
	return New(http.StatusNotFound, reason, message)
}

func Conflict(reason, message string) *Error {
	return New(http.StatusConflict, reason, message)
}

func TooManyRequests(reason, message string) *Error {
	return New(http.StatusTooManyRequests, reason, message)
}

func InternalServer(reason, message string) *Error {
	return New(http.StatusInternalServerError, reason, message)
}

func ServiceUnavailable(reason, message string) *Error {
	return New(http.StatusServiceUnavailable, reason, message)
}

func GatewayTimeout(reason, message string) *Error {
	return New(http.StatusGatewayTimeout, reason, message)
}

func IsBadRequest(err error) bool { return Code(err) == http.StatusBadRequest }

func IsUnauthorized(err error) bool { return Code(err) == http.StatusUnauthorized }

func IsForbidden(err error) bool { return Code(err) == http.StatusForbidden }

func IsNotFound(err error) bool { return Code(err) == http.StatusNotFound }

func IsTooManyRequests(err error) bool { return Code(err) == http.StatusTooManyRequests }

func IsInternalServer(err error) bool { return Code(err) == http.StatusInternalServerError }
