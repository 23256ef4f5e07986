package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMutationInput is returned when a bulk mutation receives a
	// nil list. It is a programming error and never retried.
	ErrInvalidMutationInput = errors.New("mutation input must be a list")

	// ErrMissingServicePath is returned by New for a collection with no
	// service path.
	ErrMissingServicePath = errors.New("collection has no service path")

	// ErrDuplicateServicePath is returned when two collections register
	// the same service path in one registry.
	ErrDuplicateServicePath = errors.New("service path already registered")

	// ErrRecordNotFound is returned when a copy or instance is requested
	// for an id with no cached record.
	ErrRecordNotFound = errors.New("record not found")

	// ErrStaleCopy is returned by CommitCopy and ResetCopy when the copy's
	// source record is no longer cached.
	ErrStaleCopy = errors.New("copy source record no longer exists")
)

// IsStaleCopy reports whether err is or wraps ErrStaleCopy.
func IsStaleCopy(err error) bool {
	return errors.Is(err, ErrStaleCopy)
}

func staleCopy(servicePath, key string) error {
	return fmt.Errorf("%s[%s]: %w", servicePath, key, ErrStaleCopy)
}
