package session

import (
	"context"

	"github.com/rpggio/supportbill/internal/domain/audit"
)

// SessionRepository provides persistence for generation sessions.
type SessionRepository interface {
	Create(ctx context.Context, sess *Session) error
	Get(ctx context.Context, tenantID, id string) (*Session, error)
	Update(ctx context.Context, sess *Session) error
	List(ctx context.Context, tenantID string, opts ListOptions) ([]Session, error)
	// Delete removes an open session and its prompts atomically.
	Delete(ctx context.Context, tenantID, id string) error
}

// PendingCounter counts pending prompts. Implementations must read the
// current state on every call.
type PendingCounter interface {
	CountPending(ctx context.Context, sessionID string) (int, error)
}

// Auditor receives audit events.
type Auditor interface {
	Record(ctx context.Context, event audit.Event)
}
