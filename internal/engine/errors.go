package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCollection is returned for a collection name the engine does not hold.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrEmptyID is returned when a record has no id.
	ErrEmptyID = errors.New("record id is empty")
	// ErrWrongCollection is returned when a record's type does not belong to the target collection.
	ErrWrongCollection = errors.New("record type does not match collection")
	// ErrNoDialer is returned by ConfigureRemote when the engine was built without one.
	ErrNoDialer = errors.New("no remote dialer configured")
	// ErrNotConnected is returned by Flush when pending writes exist but no remote is connected.
	ErrNotConnected = errors.New("remote not connected")
)

// ConfigError reports a failed remote configuration.
//
// Configuration errors are recoverable: the engine stays in (or returns to)
// local mode and keeps serving reads and writes.
type ConfigError struct {
	// Endpoint is the endpoint that was attempted.
	Endpoint string

	// Err is the underlying dial or subscribe failure.
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configure remote %q: %v", e.Endpoint, e.Err)
}

// Unwrap exposes the underlying failure to errors.Is.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError returns true if err is a remote configuration failure.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// WriteFailedError describes a remote write that was dead-lettered.
type WriteFailedError struct {
	Collection string
	RecordID   string
	Attempts   int
	Err        error
}

// Error implements the error interface.
func (e *WriteFailedError) Error() string {
	return fmt.Sprintf("remote write %s/%s failed after %d attempts: %v", e.Collection, e.RecordID, e.Attempts, e.Err)
}

// Unwrap exposes the last delivery failure.
func (e *WriteFailedError) Unwrap() error {
	return e.Err
}
