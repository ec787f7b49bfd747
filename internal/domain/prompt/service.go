package prompt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/supportbill/internal/domain/audit"
	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/pricing"
	"github.com/rpggio/supportbill/internal/metrics"
	"github.com/rpggio/supportbill/internal/repository"
	"github.com/shopspring/decimal"
)

// Service runs the price prompt workflow.
type Service struct {
	prompts   Repository
	overrides OverrideWriter
	audit     Auditor
	now       func() time.Time
	logger    *slog.Logger
}

// NewService creates a new prompt service.
func NewService(prompts Repository, overrides OverrideWriter, auditor Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{prompts: prompts, overrides: overrides, audit: auditor, now: time.Now, logger: logger}
}

// CreateRequest describes a prompt to raise.
type CreateRequest struct {
	SessionID      string           `json:"session_id" validate:"required"`
	TenantID       string           `json:"tenant_id" validate:"required"`
	RequesterID    string           `json:"requester_id" validate:"required"`
	SubjectEmail   string           `json:"subject_email" validate:"required"`
	ItemCode       string           `json:"item_code" validate:"required"`
	SubjectID      string           `json:"subject_id"`
	ItemName       string           `json:"item_name"`
	Region         catalogue.Region `json:"region"`
	Tier           catalogue.Tier   `json:"tier"`
	SuggestedPrice *decimal.Decimal `json:"suggested_price"`
	Cap            *decimal.Decimal `json:"cap"`
	Reason         string           `json:"reason"`
}

// ResolveRequest carries a human resolution.
type ResolveRequest struct {
	Price                float64
	SaveAsTenantPricing  bool
	SaveAsSubjectPricing bool
	Notes                string
	ResolvedBy           string
}

// ResolveResult reports the resolved prompt and any overrides written.
type ResolveResult struct {
	Prompt    *Prompt
	Overrides []OverrideChange
}

// OverrideChange is one override touched by a resolution.
type OverrideChange struct {
	Override *pricing.Override
	Outcome  pricing.Outcome
}

// Create raises a pending prompt.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Prompt, error) {
	if err := ValidateCreate(req); err != nil {
		return nil, err
	}

	p := &Prompt{
		ID:             uuid.NewString(),
		SessionID:      req.SessionID,
		TenantID:       req.TenantID,
		SubjectID:      req.SubjectID,
		RequesterID:    req.RequesterID,
		SubjectEmail:   req.SubjectEmail,
		ItemCode:       req.ItemCode,
		ItemName:       req.ItemName,
		Region:         req.Region,
		Tier:           req.Tier,
		SuggestedPrice: req.SuggestedPrice,
		Cap:            req.Cap,
		Reason:         req.Reason,
		Status:         StatusPending,
		CreatedAt:      s.now(),
	}
	if err := s.prompts.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrForeignKeyViolation) {
			return nil, fmt.Errorf("%w: unknown session %s", ErrInvalidInput, req.SessionID)
		}
		return nil, fmt.Errorf("creating price prompt: %w", err)
	}

	metrics.Prompts.WithLabelValues("raised").Inc()
	s.record(ctx, audit.Event{
		TenantID:   p.TenantID,
		Action:     audit.ActionPromptCreated,
		EntityType: "price_prompt",
		EntityID:   p.ID,
		Actor:      p.RequesterID,
		NewValues:  map[string]any{"item_code": p.ItemCode, "session_id": p.SessionID, "subject_id": p.SubjectID},
		Reason:     p.Reason,
	})
	return p, nil
}

// Resolve records a price for a pending prompt and optionally saves it as an
// override. Resolving an already-resolved prompt with the same price returns
// the stored prompt and re-applies the (idempotent) override upsert. If an
// override cannot be saved the prompt is returned to pending.
func (s *Service) Resolve(ctx context.Context, tenantID, id string, req ResolveRequest) (*ResolveResult, error) {
	price, err := ValidatePrice(req.Price)
	if err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	resolution := Resolution{
		Price:                price,
		SaveAsTenantPricing:  req.SaveAsTenantPricing,
		SaveAsSubjectPricing: req.SaveAsSubjectPricing,
		Notes:                strings.TrimSpace(req.Notes),
		ResolvedBy:           req.ResolvedBy,
	}
	if resolution.ResolvedBy == "" {
		resolution.ResolvedBy = current.RequesterID
	}
	scopes, err := s.overrideScopes(current, resolution)
	if err != nil {
		return nil, err
	}

	resolved := current
	switch {
	case current.Status == StatusPending:
		now := s.now()
		updated := *current
		updated.Status = StatusResolved
		updated.ResolvedAt = &now
		updated.Resolution = &resolution
		if err := s.prompts.Update(ctx, &updated, StatusPending); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil, ErrInvalidTransition
			}
			return nil, fmt.Errorf("resolving price prompt: %w", err)
		}
		resolved = &updated
	case current.Status == StatusResolved && current.Resolution != nil && current.Resolution.Price.Equal(price):
		// repeat of the same answer
	default:
		return nil, fmt.Errorf("%w: prompt %s is %s", ErrInvalidTransition, id, current.Status)
	}

	changes, err := s.saveOverrides(ctx, resolved, resolution, scopes)
	if err != nil {
		if resolved != current {
			s.reopen(ctx, current)
		}
		return nil, err
	}

	if resolved != current {
		metrics.Prompts.WithLabelValues("resolved").Inc()
		s.record(ctx, audit.Event{
			TenantID:   resolved.TenantID,
			Action:     audit.ActionPromptResolved,
			EntityType: "price_prompt",
			EntityID:   resolved.ID,
			Actor:      resolution.ResolvedBy,
			OldValues:  map[string]any{"status": string(StatusPending)},
			NewValues: map[string]any{
				"status":                  string(StatusResolved),
				"price":                   price.StringFixed(2),
				"save_as_tenant_pricing":  req.SaveAsTenantPricing,
				"save_as_subject_pricing": req.SaveAsSubjectPricing,
			},
			Reason: resolution.Notes,
		})
	}

	return &ResolveResult{Prompt: resolved, Overrides: changes}, nil
}

// overrideScopes lists the scopes a resolution saves pricing to.
func (s *Service) overrideScopes(p *Prompt, res Resolution) ([]pricing.Scope, error) {
	var scopes []pricing.Scope
	if res.SaveAsSubjectPricing {
		if p.SubjectID == "" {
			return nil, fmt.Errorf("%w: prompt %s has no subject to save pricing against", ErrInvalidInput, p.ID)
		}
		scopes = append(scopes, pricing.Scope{TenantID: p.TenantID, SubjectID: p.SubjectID})
	}
	if res.SaveAsTenantPricing {
		scopes = append(scopes, pricing.Scope{TenantID: p.TenantID})
	}
	if len(scopes) > 0 && s.overrides == nil {
		return nil, fmt.Errorf("override writer not configured")
	}
	return scopes, nil
}

func (s *Service) saveOverrides(ctx context.Context, p *Prompt, res Resolution, scopes []pricing.Scope) ([]OverrideChange, error) {
	if len(scopes) == 0 {
		return nil, nil
	}
	changes := make([]OverrideChange, 0, len(scopes))
	for _, scope := range scopes {
		o, outcome, err := s.overrides.Upsert(ctx, pricing.UpsertRequest{
			Scope:    scope,
			ItemCode: p.ItemCode,
			Price:    res.Price,
			Cap:      p.Cap,
			Actor:    res.ResolvedBy,
			Reason:   fmt.Sprintf("resolved price prompt %s", p.ID),
		})
		if err != nil {
			return nil, fmt.Errorf("saving pricing override: %w", err)
		}
		changes = append(changes, OverrideChange{Override: o, Outcome: outcome})
	}
	return changes, nil
}

// reopen puts a prompt claimed by Resolve back to pending.
func (s *Service) reopen(ctx context.Context, original *Prompt) {
	if err := s.prompts.Update(context.WithoutCancel(ctx), original, StatusResolved); err != nil {
		s.logger.Error("failed to reopen price prompt", "prompt_id", original.ID, "error", err)
		return
	}
	s.logger.Warn("price prompt reopened after override failure", "prompt_id", original.ID)
}

// Cancel closes a pending prompt without touching any override.
func (s *Service) Cancel(ctx context.Context, tenantID, id, reason string) (*Prompt, error) {
	current, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusPending {
		return nil, fmt.Errorf("%w: prompt %s is %s", ErrInvalidTransition, id, current.Status)
	}

	now := s.now()
	updated := *current
	updated.Status = StatusCancelled
	updated.ResolvedAt = &now
	updated.CancelReason = strings.TrimSpace(reason)
	if err := s.prompts.Update(ctx, &updated, StatusPending); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("cancelling price prompt: %w", err)
	}

	metrics.Prompts.WithLabelValues("cancelled").Inc()
	s.record(ctx, audit.Event{
		TenantID:   updated.TenantID,
		Action:     audit.ActionPromptCancelled,
		EntityType: "price_prompt",
		EntityID:   updated.ID,
		Actor:      updated.RequesterID,
		OldValues:  map[string]any{"status": string(StatusPending)},
		NewValues:  map[string]any{"status": string(StatusCancelled)},
		Reason:     updated.CancelReason,
	})
	return &updated, nil
}

// Get returns a prompt by ID.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Prompt, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidInput
	}
	p, err := s.prompts.Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("getting price prompt: %w", err)
	}
	return p, nil
}

// ListPending returns the session's pending prompts, oldest first.
func (s *Service) ListPending(ctx context.Context, tenantID, sessionID string) ([]Prompt, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidInput
	}
	prompts, err := s.prompts.ListBySession(ctx, tenantID, sessionID, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("listing pending prompts: %w", err)
	}
	return prompts, nil
}

// CountPending reads the number of pending prompts in a session directly from
// the store.
func (s *Service) CountPending(ctx context.Context, sessionID string) (int, error) {
	n, err := s.prompts.CountBySession(ctx, sessionID, StatusPending)
	if err != nil {
		return 0, fmt.Errorf("counting pending prompts: %w", err)
	}
	return n, nil
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.audit != nil {
		s.audit.Record(ctx, event)
	}
}
