package catalogue

import "errors"

var (
	// ErrItemNotFound indicates the catalogue has no item with the code.
	ErrItemNotFound = errors.New("support item not found")
	// ErrInvalidInput indicates invalid catalogue input.
	ErrInvalidInput = errors.New("invalid catalogue input")
)
