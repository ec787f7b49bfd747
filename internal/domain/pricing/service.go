package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/supportbill/internal/domain/audit"
	"github.com/rpggio/supportbill/internal/repository"
	"github.com/shopspring/decimal"
)

// Outcome describes what an upsert did.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
)

// Service manages pricing overrides.
type Service struct {
	overrides OverrideRepository
	audit     Auditor
	now       func() time.Time
	logger    *slog.Logger
}

// NewService creates a new override service.
func NewService(overrides OverrideRepository, auditor Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if auditor == nil {
		auditor = nopAuditor{}
	}
	return &Service{overrides: overrides, audit: auditor, now: time.Now, logger: logger}
}

// WithClock replaces the clock used for effective dates and history.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, audit.Event) {}

// UpsertRequest sets a fixed price at a scope. Cap, when known, decides whether
// the new price needs approval.
type UpsertRequest struct {
	Scope    Scope
	ItemCode string
	Price    decimal.Decimal
	Cap      *decimal.Decimal
	Actor    string
	Reason   string
}

// Upsert sets the active fixed price for the scope. An identical price is a
// no-op; a different price bumps the version and appends history; otherwise a
// version 1 override is created. Prices above the cap start pending approval.
func (s *Service) Upsert(ctx context.Context, req UpsertRequest) (*Override, Outcome, error) {
	if strings.TrimSpace(req.Scope.TenantID) == "" || strings.TrimSpace(req.ItemCode) == "" || req.Price.IsNegative() {
		return nil, "", ErrInvalidInput
	}

	now := s.now()
	approval := ApprovalApproved
	if req.Cap != nil && req.Price.GreaterThan(*req.Cap) {
		approval = ApprovalPending
	}

	current, err := s.overrides.FindActive(ctx, req.Scope, req.ItemCode)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, "", fmt.Errorf("loading override: %w", err)
	}

	if current == nil {
		o := &Override{
			ID:            uuid.NewString(),
			Scope:         req.Scope,
			ItemCode:      req.ItemCode,
			Mode:          Fixed{Amount: req.Price},
			EffectiveFrom: now,
			Approval:      approval,
			Active:        true,
			Version:       1,
			CreatedBy:     req.Actor,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		newPrice := req.Price
		entry := HistoryEntry{Version: 1, Action: ActionCreated, NewPrice: &newPrice, Actor: req.Actor, Reason: req.Reason, CreatedAt: now}
		if err := s.overrides.Create(ctx, o, entry); err != nil {
			if errors.Is(err, repository.ErrAlreadyExists) {
				return nil, "", ErrConflict
			}
			return nil, "", fmt.Errorf("creating override: %w", err)
		}
		o.History = []HistoryEntry{entry}

		s.audit.Record(ctx, audit.Event{
			TenantID:   req.Scope.TenantID,
			Action:     audit.ActionOverrideCreated,
			EntityType: "pricing_override",
			EntityID:   o.ID,
			Actor:      req.Actor,
			NewValues:  overrideValues(o),
			Reason:     req.Reason,
		})
		return o, OutcomeCreated, nil
	}

	if oldPrice, ok := current.FixedAmount(); ok && oldPrice.Equal(req.Price) {
		return current, OutcomeUnchanged, nil
	}

	updated := *current
	updated.Mode = Fixed{Amount: req.Price}
	updated.Approval = approval
	updated.Version = current.Version + 1
	updated.UpdatedAt = now

	entry := HistoryEntry{Version: updated.Version, Action: ActionPriceChange, Actor: req.Actor, Reason: req.Reason, CreatedAt: now}
	if oldPrice, ok := current.FixedAmount(); ok {
		entry.OldPrice = &oldPrice
	}
	newPrice := req.Price
	entry.NewPrice = &newPrice
	if err := s.overrides.Update(ctx, &updated, current.Version, entry); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, "", ErrConflict
		}
		return nil, "", fmt.Errorf("updating override: %w", err)
	}
	updated.History = append(append([]HistoryEntry(nil), current.History...), entry)

	s.audit.Record(ctx, audit.Event{
		TenantID:   req.Scope.TenantID,
		Action:     audit.ActionOverrideUpdated,
		EntityType: "pricing_override",
		EntityID:   updated.ID,
		Actor:      req.Actor,
		OldValues:  overrideValues(current),
		NewValues:  overrideValues(&updated),
		Reason:     req.Reason,
	})
	return &updated, OutcomeUpdated, nil
}

// SetApproval approves or rejects an override.
func (s *Service) SetApproval(ctx context.Context, tenantID, id string, approval Approval, actor, reason string) (*Override, error) {
	if id == "" || !approval.Valid() || approval == ApprovalPending {
		return nil, ErrInvalidInput
	}
	current, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if current.Approval == approval {
		return current, nil
	}

	now := s.now()
	updated := *current
	updated.Approval = approval
	updated.Version = current.Version + 1
	updated.UpdatedAt = now

	action := ActionApproved
	if approval == ApprovalRejected {
		action = ActionRejected
	}
	entry := HistoryEntry{Version: updated.Version, Action: action, Actor: actor, Reason: reason, CreatedAt: now}
	if err := s.overrides.Update(ctx, &updated, current.Version, entry); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("updating override approval: %w", err)
	}

	s.audit.Record(ctx, audit.Event{
		TenantID:   tenantID,
		Action:     audit.ActionOverrideApproval,
		EntityType: "pricing_override",
		EntityID:   id,
		Actor:      actor,
		OldValues:  map[string]any{"approval": string(current.Approval)},
		NewValues:  map[string]any{"approval": string(approval)},
		Reason:     reason,
	})
	return &updated, nil
}

// Deactivate retires an override so a new one may be created at its scope.
func (s *Service) Deactivate(ctx context.Context, tenantID, id, actor, reason string) (*Override, error) {
	current, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !current.Active {
		return current, nil
	}

	now := s.now()
	updated := *current
	updated.Active = false
	updated.Version = current.Version + 1
	updated.UpdatedAt = now
	end := now
	updated.EffectiveTo = &end
	entry := HistoryEntry{Version: updated.Version, Action: ActionDeactivated, Actor: actor, Reason: reason, CreatedAt: now}
	if err := s.overrides.Update(ctx, &updated, current.Version, entry); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("deactivating override: %w", err)
	}

	s.audit.Record(ctx, audit.Event{
		TenantID:   tenantID,
		Action:     audit.ActionOverrideDeactivated,
		EntityType: "pricing_override",
		EntityID:   id,
		Actor:      actor,
		Reason:     reason,
	})
	return &updated, nil
}

// Get returns an override with its history.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Override, error) {
	o, err := s.overrides.Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOverrideNotFound
		}
		return nil, fmt.Errorf("getting override: %w", err)
	}
	history, err := s.overrides.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading override history: %w", err)
	}
	o.History = history
	return o, nil
}

// List returns overrides for a tenant.
func (s *Service) List(ctx context.Context, tenantID string, opts ListOverridesOptions) ([]Override, error) {
	return s.overrides.List(ctx, tenantID, opts)
}

func overrideValues(o *Override) map[string]any {
	values := map[string]any{
		"item_code": o.ItemCode,
		"version":   o.Version,
		"approval":  string(o.Approval),
		"mode":      string(o.Mode.Kind()),
	}
	if o.Scope.SubjectID != "" {
		values["subject_id"] = o.Scope.SubjectID
	}
	switch m := o.Mode.(type) {
	case Fixed:
		values["amount"] = m.Amount.StringFixed(2)
	case Multiplier:
		values["factor"] = m.Factor.String()
		if m.BasedOnTier != "" {
			values["based_on_tier"] = string(m.BasedOnTier)
		}
	}
	return values
}
