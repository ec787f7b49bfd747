package generation

import (
	"context"
	"time"

	"github.com/rpggio/supportbill/internal/domain/audit"
	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/extract"
	"github.com/rpggio/supportbill/internal/domain/lineitem"
	"github.com/rpggio/supportbill/internal/domain/pricing"
	"github.com/rpggio/supportbill/internal/domain/prompt"
	"github.com/rpggio/supportbill/internal/domain/session"
	"github.com/rpggio/supportbill/internal/domain/tenant"
)

// Roster reads subjects, assignments and worked time.
type Roster interface {
	GetSubject(ctx context.Context, tenantID, subjectID string) (*extract.Subject, error)
	// ListAssignments returns the subject's active assignments with their
	// schedules loaded.
	ListAssignments(ctx context.Context, tenantID, subjectID string) ([]extract.Assignment, error)
	ListWorkedTime(ctx context.Context, tenantID, assignmentID string, start, end time.Time) ([]extract.WorkedTime, error)
}

// ExpenseFeed lists approved, reimbursable expenses.
type ExpenseFeed interface {
	ListApprovedReimbursable(ctx context.Context, tenantID, subjectID string, start, end time.Time) ([]extract.Expense, error)
}

// PriceResolver walks the pricing cascade.
type PriceResolver interface {
	Resolve(ctx context.Context, req pricing.ResolveRequest) (pricing.Resolution, error)
}

// BatchValidator validates priced line items.
type BatchValidator interface {
	ValidateBatch(ctx context.Context, items []lineitem.LineItem, defaultRegion catalogue.Region, defaultTier catalogue.Tier) pricing.BatchResult
}

// PromptStore raises and lists price prompts.
type PromptStore interface {
	Create(ctx context.Context, req prompt.CreateRequest) (*prompt.Prompt, error)
	ListPending(ctx context.Context, tenantID, sessionID string) ([]prompt.Prompt, error)
}

// Sessions opens and reads generation sessions. Discard removes an open
// session together with its prompts.
type Sessions interface {
	Start(ctx context.Context, req session.StartRequest) (*session.Session, error)
	Get(ctx context.Context, tenantID, id string) (*session.Session, error)
	Discard(ctx context.Context, tenantID, id string) error
}

// SettingsSource supplies tenant billing defaults.
type SettingsSource interface {
	Get(ctx context.Context, tenantID string) (*tenant.Settings, error)
}

// Auditor receives audit events.
type Auditor interface {
	Record(ctx context.Context, event audit.Event)
}
