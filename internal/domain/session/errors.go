package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound indicates the session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrPendingPrompts indicates the session still has unresolved price prompts.
	ErrPendingPrompts = errors.New("session has pending price prompts")
	// ErrInvalidInput indicates invalid session input.
	ErrInvalidInput = errors.New("invalid session input")
)

// PendingPromptsError rejects completion of a session with unresolved prompts.
type PendingPromptsError struct {
	SessionID string
	Count     int
}

func (e *PendingPromptsError) Error() string {
	noun := "prompts"
	if e.Count == 1 {
		noun = "prompt"
	}
	return fmt.Sprintf("session %s cannot be completed: %d pending price %s", e.SessionID, e.Count, noun)
}

func (e *PendingPromptsError) Unwrap() error { return ErrPendingPrompts }
