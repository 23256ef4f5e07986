package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a failed remote call. It mirrors the JSON error body services
// send, so it survives a round trip through the REST transport.
type Error struct {
	Name      string `json:"name"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	ClassName string `json:"className"`
	Data      any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// ErrorName returns the error's kind, e.g. "NotFound".
func (e *Error) ErrorName() string { return e.Name }

// StatusCode returns the HTTP status of the error.
func (e *Error) StatusCode() int { return e.Code }

// ErrorClassName returns the kebab-case class, e.g. "not-found".
func (e *Error) ErrorClassName() string { return e.ClassName }

// ErrorData returns the error's extra payload.
func (e *Error) ErrorData() any { return e.Data }

type kind struct {
	name      string
	className string
}

var kinds = map[int]kind{
	http.StatusBadRequest:          {"BadRequest", "bad-request"},
	http.StatusUnauthorized:        {"NotAuthenticated", "not-authenticated"},
	http.StatusPaymentRequired:     {"PaymentError", "payment-error"},
	http.StatusForbidden:           {"Forbidden", "forbidden"},
	http.StatusNotFound:            {"NotFound", "not-found"},
	http.StatusMethodNotAllowed:    {"MethodNotAllowed", "method-not-allowed"},
	http.StatusNotAcceptable:       {"NotAcceptable", "not-acceptable"},
	http.StatusRequestTimeout:      {"Timeout", "timeout"},
	http.StatusConflict:            {"Conflict", "conflict"},
	http.StatusLengthRequired:      {"LengthRequired", "length-required"},
	http.StatusUnprocessableEntity: {"Unprocessable", "unprocessable"},
	http.StatusTooManyRequests:     {"TooManyRequests", "too-many-requests"},
	http.StatusInternalServerError: {"GeneralError", "general-error"},
	http.StatusNotImplemented:      {"NotImplemented", "not-implemented"},
	http.StatusBadGateway:          {"BadGateway", "bad-gateway"},
	http.StatusServiceUnavailable:  {"Unavailable", "unavailable"},
}

// NewError builds an Error for an HTTP status. Unknown statuses become
// GeneralError.
func NewError(code int, format string, args ...any) *Error {
	k, ok := kinds[code]
	if !ok {
		code = http.StatusInternalServerError
		k = kinds[code]
	}
	return &Error{
		Name:      k.name,
		Message:   fmt.Sprintf(format, args...),
		Code:      code,
		ClassName: k.className,
	}
}

// NotFound builds a 404 error.
func NotFound(format string, args ...any) *Error {
	return NewError(http.StatusNotFound, format, args...)
}

// BadRequest builds a 400 error.
func BadRequest(format string, args ...any) *Error {
	return NewError(http.StatusBadRequest, format, args...)
}

// GeneralError builds a 500 error.
func GeneralError(format string, args ...any) *Error {
	return NewError(http.StatusInternalServerError, format, args...)
}

// AsError converts any error to an *Error. Errors that already are one
// (or wrap one) are returned as is; errors reporting a status through
// StatusCode keep it; everything else is a GeneralError.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) {
		return NewError(coded.StatusCode(), "%s", err.Error())
	}
	return GeneralError("%s", err.Error())
}

// IsNotFound reports whether err is or wraps a 404 Error.
func IsNotFound(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Code == http.StatusNotFound
}
