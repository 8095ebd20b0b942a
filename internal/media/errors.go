package media

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced at the operation boundary.
type ErrorKind string

const (
	KindNoURLFound           ErrorKind = "no_url_found"
	KindUnsupportedPlatform  ErrorKind = "unsupported_platform"
	KindExtractionFailed     ErrorKind = "extraction_failed"
	KindNetwork              ErrorKind = "network"
	KindStorage              ErrorKind = "storage"
	KindMergeToolUnavailable ErrorKind = "merge_tool_unavailable"
	KindMergeFailed          ErrorKind = "merge_failed"
	KindInvalidInput         ErrorKind = "invalid_input"
	KindInternal             ErrorKind = "internal"
)

// Error is a classified failure with a message safe to show to users.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified error wrapping err (which may be nil).
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain,
// or KindInternal if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// GenericMessage is shown for failures with no message of their own.
const GenericMessage = "功能太火爆啦，请稍后再试"

// MessageOf returns the user-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return GenericMessage
}
