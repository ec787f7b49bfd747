package mcp

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/extract"
	"github.com/rpggio/supportbill/internal/domain/generation"
	"github.com/rpggio/supportbill/internal/domain/pricing"
	"github.com/rpggio/supportbill/internal/domain/prompt"
	"github.com/rpggio/supportbill/internal/domain/session"
	"github.com/rpggio/supportbill/internal/validate"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{prompt.ErrPromptNotFound, "PROMPT_NOT_FOUND"},
		{fmt.Errorf("%w: prompt p1 is resolved", prompt.ErrInvalidTransition), "INVALID_TRANSITION"},
		{prompt.ErrInvalidPrice, "INVALID_PRICE"},
		{session.ErrSessionNotFound, "SESSION_NOT_FOUND"},
		{fmt.Errorf("%w: s1", generation.ErrSessionNotFound), "SESSION_NOT_FOUND"},
		{fmt.Errorf("%w: s1", generation.ErrSessionClosed), "SESSION_CLOSED"},
		{fmt.Errorf("%w: x", generation.ErrSubjectNotFound), "SUBJECT_NOT_FOUND"},
		{generation.ErrBulkAborted, "BULK_ABORTED"},
		{pricing.ErrOverrideNotFound, "OVERRIDE_NOT_FOUND"},
		{pricing.ErrConflict, "CONFLICT"},
		{fmt.Errorf("%w: catalogue down", pricing.ErrDownstreamUnavailable), "DOWNSTREAM_UNAVAILABLE"},
		{catalogue.ErrItemNotFound, "ITEM_NOT_FOUND"},
		{&extract.DateError{Field: "date", Value: "soon"}, "INVALID_DATES"},
		{fmt.Errorf("%w: %w", generation.ErrInvalidInput, extract.ErrStartAfterEnd), "INVALID_DATES"},
		{catalogue.ErrInvalidInput, "INVALID_INPUT"},
		{fmt.Errorf("%w: bad approval", errInvalidArgument), "INVALID_INPUT"},
		{fmt.Errorf("%w: invalid bearer token", ErrUnauthorized), "UNAUTHORIZED"},
		{errors.New("disk on fire"), "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			require.Equal(t, tc.code, MapError(tc.err).Code)
		})
	}
}

func TestMapErrorPendingPrompts(t *testing.T) {
	err := fmt.Errorf("completing: %w", &session.PendingPromptsError{SessionID: "s1", Count: 2})
	apiErr := MapError(err)
	require.Equal(t, "PENDING_PROMPTS", apiErr.Code)
	require.Equal(t, map[string]any{"session_id": "s1", "pending_count": 2}, apiErr.Details)
}

func TestMapErrorValidation(t *testing.T) {
	err := validate.Fields(prompt.ErrInvalidInput, "required", "session_id", "item_code")
	apiErr := MapError(err)
	require.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	require.Contains(t, apiErr.Message, "session_id, item_code")
}

func TestMapErrorNil(t *testing.T) {
	require.Nil(t, MapError(nil))
}
