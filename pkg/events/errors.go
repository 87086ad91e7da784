// ABOUTME: Business-level outcomes of event store operations
// ABOUTME: Error text doubles as the reply shown to the user

package events

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed store operation
type ErrorKind int

const (
	// InvalidDate means the date is not YYYY-MM-DD or is not a real calendar day
	InvalidDate ErrorKind = iota + 1
	// NotFound means no stored event matched the requested title
	NotFound
	// InvalidTitle means the title was empty after trimming
	InvalidTitle
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidDate:
		return "invalid_date"
	case NotFound:
		return "not_found"
	case InvalidTitle:
		return "invalid_title"
	default:
		return "unknown"
	}
}

// Error is returned by Store operations. Its message is the literal reply text.
type Error struct {
	Kind  ErrorKind
	Title string
}

func (e *Error) Error() string {
	switch e.Kind {
	case InvalidDate:
		return "Invalid date format. Use YYYY-MM-DD."
	case NotFound:
		return fmt.Sprintf("No event found with title '%s'.", e.Title)
	case InvalidTitle:
		return "Event title cannot be empty."
	default:
		return "Unknown event error."
	}
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of the title carried by err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons
var (
	ErrInvalidDate  = &Error{Kind: InvalidDate}
	ErrNotFound     = &Error{Kind: NotFound}
	ErrInvalidTitle = &Error{Kind: InvalidTitle}
)

// KindOf returns the ErrorKind carried by err, or 0 when err is not a store error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
