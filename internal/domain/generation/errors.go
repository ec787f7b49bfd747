package generation

import "errors"

var (
	// ErrInvalidInput indicates invalid generation parameters.
	ErrInvalidInput = errors.New("invalid generation request")
	// ErrSubjectNotFound indicates the subject doesn't exist for the tenant.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrSessionClosed indicates the supplied session is already completed.
	ErrSessionClosed = errors.New("generation session already completed")
	// ErrSessionNotFound indicates the supplied session doesn't exist.
	ErrSessionNotFound = errors.New("generation session not found")
	// ErrBulkAborted indicates a bulk run stopped before every batch ran.
	ErrBulkAborted = errors.New("bulk generation aborted")
)
