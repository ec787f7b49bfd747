package prompt

import (
	"context"

	"github.com/rpggio/supportbill/internal/domain/audit"
	"github.com/rpggio/supportbill/internal/domain/pricing"
)

// Repository persists prompts.
type Repository interface {
	Create(ctx context.Context, p *Prompt) error
	Get(ctx context.Context, tenantID, id string) (*Prompt, error)
	// Update writes p if its stored status still equals expected.
	Update(ctx context.Context, p *Prompt, expected Status) error
	ListBySession(ctx context.Context, tenantID, sessionID string, status Status) ([]Prompt, error)
	CountBySession(ctx context.Context, sessionID string, status Status) (int, error)
}

// OverrideWriter materializes a resolved price as a pricing override.
type OverrideWriter interface {
	Upsert(ctx context.Context, req pricing.UpsertRequest) (*pricing.Override, pricing.Outcome, error)
}

// Auditor receives audit events.
type Auditor interface {
	Record(ctx context.Context, event audit.Event)
}
