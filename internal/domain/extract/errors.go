package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrStartAfterEnd indicates a date range whose start is after its end.
	ErrStartAfterEnd = errors.New("start date is after end date")
	// ErrInvalidDate indicates an unparseable date.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidTime indicates an unparseable time of day.
	ErrInvalidTime = errors.New("invalid time of day")
)

// DateError names the field holding an unparseable date.
type DateError struct {
	Field string
	Value string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("invalid %s %q: expected YYYY-MM-DD", e.Field, e.Value)
}

func (e *DateError) Unwrap() error { return ErrInvalidDate }
