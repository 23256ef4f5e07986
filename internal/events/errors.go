package events

import (
	"errors"
	"fmt"
)

// DispatchErrorCode categorizes events the loop could not apply.
type DispatchErrorCode string

const (
	// ErrCodeUnknownService indicates no handler is registered for the
	// event's service path.
	ErrCodeUnknownService DispatchErrorCode = "UNKNOWN_SERVICE"

	// ErrCodeInvalidEvent indicates an event name outside
	// created/updated/patched/removed.
	ErrCodeInvalidEvent DispatchErrorCode = "INVALID_EVENT"

	// ErrCodeIgnored indicates the handler declined the event, because
	// events are disabled or a filter rejected the record.
	ErrCodeIgnored DispatchErrorCode = "IGNORED"
)

// DispatchError describes an event that was not applied.
type DispatchError struct {
	Code    DispatchErrorCode
	Service string
	Event   string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s: %s event for service %q", e.Code, e.Event, e.Service)
}

// IsDispatchError reports whether err is a DispatchError with the given code.
func IsDispatchError(err error, code DispatchErrorCode) bool {
	var de *DispatchError
	return errors.As(err, &de) && de.Code == code
}
