package pricing

import "errors"

var (
	// ErrOverrideNotFound indicates the override doesn't exist.
	ErrOverrideNotFound = errors.New("pricing override not found")
	// ErrConflict indicates the override changed between read and write.
	ErrConflict = errors.New("pricing override modified concurrently")
	// ErrInvalidInput indicates invalid pricing input.
	ErrInvalidInput = errors.New("invalid pricing input")
	// ErrDownstreamUnavailable indicates the catalogue or override store could not be read.
	ErrDownstreamUnavailable = errors.New("pricing data unavailable")
)
