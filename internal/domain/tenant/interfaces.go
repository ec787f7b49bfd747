package tenant

import (
	"context"

	"github.com/rpggio/supportbill/internal/domain/audit"
)

// Repository provides persistence operations for tenant settings.
type Repository interface {
	Get(ctx context.Context, tenantID string) (*Settings, error)
	Upsert(ctx context.Context, settings *Settings) error
}

// Auditor receives audit events.
type Auditor interface {
	Record(ctx context.Context, event audit.Event)
}
