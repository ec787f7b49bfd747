package prompt

import "errors"

var (
	// ErrPromptNotFound indicates the prompt doesn't exist.
	ErrPromptNotFound = errors.New("price prompt not found")
	// ErrInvalidTransition indicates the prompt is no longer pending.
	ErrInvalidTransition = errors.New("price prompt is not pending")
	// ErrInvalidPrice indicates the provided price is not a finite number >= 0.
	ErrInvalidPrice = errors.New("price must be a finite number greater than or equal to 0")
	// ErrInvalidInput indicates invalid prompt input.
	ErrInvalidInput = errors.New("invalid price prompt input")
)
