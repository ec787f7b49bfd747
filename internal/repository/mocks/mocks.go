package mocks

import (
	"context"
	"time"

	"github.com/rpggio/supportbill/internal/domain/audit"
	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/extract"
	"github.com/rpggio/supportbill/internal/domain/pricing"
	"github.com/rpggio/supportbill/internal/domain/prompt"
	"github.com/rpggio/supportbill/internal/domain/session"
	"github.com/rpggio/supportbill/internal/domain/tenant"
	"github.com/stretchr/testify/mock"
)

// CatalogueLookup is a mock for catalogue.Lookup.
type CatalogueLookup struct {
	mock.Mock
}

func (m *CatalogueLookup) GetItem(ctx context.Context, code string) (*catalogue.SupportItem, error) {
	args := m.Called(ctx, code)
	if item, ok := args.Get(0).(*catalogue.SupportItem); ok {
		return item, args.Error(1)
	}
	return nil, args.Error(1)
}

// CatalogueRepository is a mock for catalogue.Repository.
type CatalogueRepository struct {
	CatalogueLookup
}

func (m *CatalogueRepository) Upsert(ctx context.Context, item *catalogue.SupportItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *CatalogueRepository) Search(ctx context.Context, query string, limit int) ([]catalogue.SearchResult, error) {
	args := m.Called(ctx, query, limit)
	if list, ok := args.Get(0).([]catalogue.SearchResult); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// AuditRepository is a mock for audit.Repository.
type AuditRepository struct {
	mock.Mock
}

func (m *AuditRepository) Record(ctx context.Context, event *audit.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *AuditRepository) List(ctx context.Context, tenantID string, opts audit.ListOptions) ([]audit.Event, error) {
	args := m.Called(ctx, tenantID, opts)
	if list, ok := args.Get(0).([]audit.Event); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// Auditor is a mock for the best-effort audit sink used by services.
type Auditor struct {
	mock.Mock
}

func (m *Auditor) Record(ctx context.Context, event audit.Event) {
	m.Called(ctx, event)
}

// TenantRepository is a mock for tenant.Repository.
type TenantRepository struct {
	mock.Mock
}

func (m *TenantRepository) Get(ctx context.Context, tenantID string) (*tenant.Settings, error) {
	args := m.Called(ctx, tenantID)
	if s, ok := args.Get(0).(*tenant.Settings); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TenantRepository) Upsert(ctx context.Context, settings *tenant.Settings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

// PolicySource is a mock for pricing.PolicySource.
type PolicySource struct {
	mock.Mock
}

func (m *PolicySource) PricingPolicy(ctx context.Context, tenantID string) (pricing.Policy, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(pricing.Policy), args.Error(1)
}

// OverrideRepository is a mock for pricing.OverrideRepository.
type OverrideRepository struct {
	mock.Mock
}

func (m *OverrideRepository) FindActive(ctx context.Context, scope pricing.Scope, itemCode string) (*pricing.Override, error) {
	args := m.Called(ctx, scope, itemCode)
	if o, ok := args.Get(0).(*pricing.Override); ok {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *OverrideRepository) Get(ctx context.Context, tenantID, id string) (*pricing.Override, error) {
	args := m.Called(ctx, tenantID, id)
	if o, ok := args.Get(0).(*pricing.Override); ok {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *OverrideRepository) Create(ctx context.Context, o *pricing.Override, entry pricing.HistoryEntry) error {
	args := m.Called(ctx, o, entry)
	return args.Error(0)
}

func (m *OverrideRepository) Update(ctx context.Context, o *pricing.Override, expectedVersion int64, entry pricing.HistoryEntry) error {
	args := m.Called(ctx, o, expectedVersion, entry)
	return args.Error(0)
}

func (m *OverrideRepository) History(ctx context.Context, overrideID string) ([]pricing.HistoryEntry, error) {
	args := m.Called(ctx, overrideID)
	if list, ok := args.Get(0).([]pricing.HistoryEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *OverrideRepository) List(ctx context.Context, tenantID string, opts pricing.ListOverridesOptions) ([]pricing.Override, error) {
	args := m.Called(ctx, tenantID, opts)
	if list, ok := args.Get(0).([]pricing.Override); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// OverrideWriter is a mock for prompt.OverrideWriter.
type OverrideWriter struct {
	mock.Mock
}

func (m *OverrideWriter) Upsert(ctx context.Context, req pricing.UpsertRequest) (*pricing.Override, pricing.Outcome, error) {
	args := m.Called(ctx, req)
	o, _ := args.Get(0).(*pricing.Override)
	outcome, _ := args.Get(1).(pricing.Outcome)
	return o, outcome, args.Error(2)
}

// PromptRepository is a mock for prompt.Repository.
type PromptRepository struct {
	mock.Mock
}

func (m *PromptRepository) Create(ctx context.Context, p *prompt.Prompt) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *PromptRepository) Get(ctx context.Context, tenantID, id string) (*prompt.Prompt, error) {
	args := m.Called(ctx, tenantID, id)
	if p, ok := args.Get(0).(*prompt.Prompt); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PromptRepository) Update(ctx context.Context, p *prompt.Prompt, expected prompt.Status) error {
	args := m.Called(ctx, p, expected)
	return args.Error(0)
}

func (m *PromptRepository) ListBySession(ctx context.Context, tenantID, sessionID string, status prompt.Status) ([]prompt.Prompt, error) {
	args := m.Called(ctx, tenantID, sessionID, status)
	if list, ok := args.Get(0).([]prompt.Prompt); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PromptRepository) CountBySession(ctx context.Context, sessionID string, status prompt.Status) (int, error) {
	args := m.Called(ctx, sessionID, status)
	return args.Int(0), args.Error(1)
}

// SessionRepository is a mock for session.SessionRepository.
type SessionRepository struct {
	mock.Mock
}

func (m *SessionRepository) Create(ctx context.Context, sess *session.Session) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

func (m *SessionRepository) Get(ctx context.Context, tenantID, id string) (*session.Session, error) {
	args := m.Called(ctx, tenantID, id)
	if sess, ok := args.Get(0).(*session.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRepository) Update(ctx context.Context, sess *session.Session) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

func (m *SessionRepository) Delete(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *SessionRepository) List(ctx context.Context, tenantID string, opts session.ListOptions) ([]session.Session, error) {
	args := m.Called(ctx, tenantID, opts)
	if list, ok := args.Get(0).([]session.Session); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// PendingCounter is a mock for session.PendingCounter.
type PendingCounter struct {
	mock.Mock
}

func (m *PendingCounter) CountPending(ctx context.Context, sessionID string) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

// Roster is a mock for generation.Roster.
type Roster struct {
	mock.Mock
}

func (m *Roster) GetSubject(ctx context.Context, tenantID, subjectID string) (*extract.Subject, error) {
	args := m.Called(ctx, tenantID, subjectID)
	if s, ok := args.Get(0).(*extract.Subject); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Roster) ListAssignments(ctx context.Context, tenantID, subjectID string) ([]extract.Assignment, error) {
	args := m.Called(ctx, tenantID, subjectID)
	if list, ok := args.Get(0).([]extract.Assignment); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Roster) ListWorkedTime(ctx context.Context, tenantID, assignmentID string, start, end time.Time) ([]extract.WorkedTime, error) {
	args := m.Called(ctx, tenantID, assignmentID, start, end)
	if list, ok := args.Get(0).([]extract.WorkedTime); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// ExpenseFeed is a mock for generation.ExpenseFeed.
type ExpenseFeed struct {
	mock.Mock
}

func (m *ExpenseFeed) ListApprovedReimbursable(ctx context.Context, tenantID, subjectID string, start, end time.Time) ([]extract.Expense, error) {
	args := m.Called(ctx, tenantID, subjectID, start, end)
	if list, ok := args.Get(0).([]extract.Expense); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}
