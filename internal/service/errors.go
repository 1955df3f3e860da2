package service

import (
	"errors"
	"fmt"
)

// ErrConfirmationRequired is returned by destructive operations called
// without explicit confirmation. Nothing is removed.
var ErrConfirmationRequired = errors.New("confirmation required")

// Validation error codes.
const (
	CodeDuplicateName    = "DUPLICATE_NAME"
	CodeEventFull        = "EVENT_FULL"
	CodeEventClosed      = "EVENT_CLOSED"
	CodeDuplicateCheckIn = "DUPLICATE_CHECKIN"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeNotFound         = "NOT_FOUND"
)

// ValidationError is a rejected mutation. No collection was touched.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func rejectf(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is a ValidationError, optionally
// with one of the given codes.
func IsValidationError(err error, codes ...string) bool {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, c := range codes {
		if ve.Code == c {
			return true
		}
	}
	return false
}

// CodeOf returns the code of a ValidationError, or "" for any other error.
func CodeOf(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}
