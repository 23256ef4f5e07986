package queryir

import (
	"errors"
	"fmt"
)

// QueryError reports a query document that cannot be evaluated.
//
// QueryError maps onto a remote BadRequest (HTTP 400) so the same failure
// surfaces identically whether the query was evaluated locally or by the
// reference service.
type QueryError struct {
	// Code identifies the error category.
	Code QueryErrorCode

	// Key is the offending query key or operator.
	Key string

	// Message is a human-readable description.
	Message string
}

// QueryErrorCode categorizes query errors.
type QueryErrorCode string

const (
	// ErrCodeInvalidOperator indicates a $-operator outside the allowed set.
	ErrCodeInvalidOperator QueryErrorCode = "INVALID_OPERATOR"

	// ErrCodeInvalidValue indicates an operator argument of the wrong shape.
	ErrCodeInvalidValue QueryErrorCode = "INVALID_VALUE"

	// ErrCodeInvalidFilter indicates a malformed $sort/$limit/$skip/$select.
	ErrCodeInvalidFilter QueryErrorCode = "INVALID_FILTER"
)

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Key)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// StatusCode is the HTTP status a transport reports for this error.
func (e *QueryError) StatusCode() int { return 400 }

// IsQueryError returns true if err is or wraps a *QueryError.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

func invalidOperator(key string) *QueryError {
	return &QueryError{
		Code:    ErrCodeInvalidOperator,
		Key:     key,
		Message: "invalid query parameter",
	}
}

func invalidValue(key, format string, args ...any) *QueryError {
	return &QueryError{
		Code:    ErrCodeInvalidValue,
		Key:     key,
		Message: fmt.Sprintf(format, args...),
	}
}

func invalidFilter(key, format string, args ...any) *QueryError {
	return &QueryError{
		Code:    ErrCodeInvalidFilter,
		Key:     key,
		Message: fmt.Sprintf(format, args...),
	}
}
