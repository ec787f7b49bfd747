package tenant

import "errors"

// ErrInvalidInput indicates invalid tenant settings input.
var ErrInvalidInput = errors.New("invalid tenant settings input")
