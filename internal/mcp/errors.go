package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/extract"
	"github.com/rpggio/supportbill/internal/domain/generation"
	"github.com/rpggio/supportbill/internal/domain/pricing"
	"github.com/rpggio/supportbill/internal/domain/prompt"
	"github.com/rpggio/supportbill/internal/domain/session"
	"github.com/rpggio/supportbill/internal/domain/tenant"
	"github.com/rpggio/supportbill/internal/validate"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes. Unknown errors become
// INTERNAL with the original message.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}

	var pending *session.PendingPromptsError
	var verr *validate.Error

	switch {
	case errors.As(err, &pending):
		return &APIError{
			Code:         "PENDING_PROMPTS",
			Message:      pending.Error(),
			Details:      map[string]any{"session_id": pending.SessionID, "pending_count": pending.Count},
			RecoveryHint: "Resolve or cancel the pending price prompts first",
		}
	case errors.As(err, &verr):
		return &APIError{
			Code:         "VALIDATION_ERROR",
			Message:      verr.Error(),
			Details:      map[string]any{"fields": verr.Fields},
			RecoveryHint: "Supply every listed field",
		}
	case errors.Is(err, prompt.ErrPromptNotFound):
		return &APIError{Code: "PROMPT_NOT_FOUND", Message: err.Error(), RecoveryHint: "Call list_pending_prompts for valid ids"}
	case errors.Is(err, prompt.ErrInvalidTransition):
		return &APIError{Code: "INVALID_TRANSITION", Message: err.Error(), RecoveryHint: "Only pending prompts can be resolved or cancelled"}
	case errors.Is(err, prompt.ErrInvalidPrice):
		return &APIError{Code: "INVALID_PRICE", Message: err.Error(), RecoveryHint: "Use a finite price of 0 or more"}
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, generation.ErrSessionNotFound):
		return &APIError{Code: "SESSION_NOT_FOUND", Message: err.Error(), RecoveryHint: "Omit session_id to start a new session"}
	case errors.Is(err, generation.ErrSessionClosed):
		return &APIError{Code: "SESSION_CLOSED", Message: err.Error(), RecoveryHint: "Omit session_id to start a new session"}
	case errors.Is(err, generation.ErrBulkAborted):
		return &APIError{Code: "BULK_ABORTED", Message: err.Error(), RecoveryHint: "Retry the subjects that were not processed"}
	case errors.Is(err, generation.ErrSubjectNotFound):
		return &APIError{Code: "SUBJECT_NOT_FOUND", Message: err.Error(), RecoveryHint: "Check the subject id"}
	case errors.Is(err, pricing.ErrOverrideNotFound):
		return &APIError{Code: "OVERRIDE_NOT_FOUND", Message: err.Error(), RecoveryHint: "Call list_pricing_overrides for valid ids"}
	case errors.Is(err, pricing.ErrConflict):
		return &APIError{Code: "CONFLICT", Message: err.Error(), RecoveryHint: "Reload the override and retry"}
	case errors.Is(err, pricing.ErrDownstreamUnavailable):
		return &APIError{Code: "DOWNSTREAM_UNAVAILABLE", Message: err.Error(), RecoveryHint: "Retry later"}
	case errors.Is(err, catalogue.ErrItemNotFound):
		return &APIError{Code: "ITEM_NOT_FOUND", Message: err.Error(), RecoveryHint: "Call search_catalogue to find the item code"}
	case errors.Is(err, extract.ErrInvalidDate), errors.Is(err, extract.ErrStartAfterEnd):
		return &APIError{Code: "INVALID_DATES", Message: err.Error(), RecoveryHint: "Use YYYY-MM-DD with start on or before end"}
	case errors.Is(err, generation.ErrInvalidInput),
		errors.Is(err, prompt.ErrInvalidInput),
		errors.Is(err, pricing.ErrInvalidInput),
		errors.Is(err, session.ErrInvalidInput),
		errors.Is(err, tenant.ErrInvalidInput),
		errors.Is(err, catalogue.ErrInvalidInput),
		errors.Is(err, errInvalidArgument):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	case errors.Is(err, ErrUnauthorized):
		return &APIError{Code: "UNAUTHORIZED", Message: err.Error(), RecoveryHint: "Send a valid bearer token"}
	default:
		return &APIError{Code: "INTERNAL", Message: err.Error()}
	}
}

var errInvalidArgument = errors.New("invalid argument")
