package genplan

import (
	"context"
	"errors"
	"fmt"
)

// Category classifies a generation failure so callers can decide whether a
// retry is worthwhile.
type Category string

const (
	CategoryTimeout   Category = "timeout"
	CategoryMalformed Category = "malformed_structure"
	CategoryUpstream  Category = "upstream_error"
	CategoryUnknown   Category = "unknown"
)

// Error is a classified generation failure. Generation errors are fatal to
// the request; they are never silently degraded.
type Error struct {
	Err      error
	Message  string
	Category Category
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plan generation failed (%s): %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("plan generation failed (%s): %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify extracts the category from any error chain; errors outside the
// taxonomy report CategoryUnknown.
func Classify(err error) Category {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	return CategoryUnknown
}

func timeoutError(msg string, err error) *Error {
	return &Error{Category: CategoryTimeout, Message: msg, Err: err}
}

func malformedError(msg string, err error) *Error {
	return &Error{Category: CategoryMalformed, Message: msg, Err: err}
}

func upstreamError(msg string, err error) *Error {
	return &Error{Category: CategoryUpstream, Message: msg, Err: err}
}
