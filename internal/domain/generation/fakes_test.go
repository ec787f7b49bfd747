package generation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/extract"
	"github.com/rpggio/supportbill/internal/domain/generation"
	"github.com/rpggio/supportbill/internal/domain/pricing"
	"github.com/rpggio/supportbill/internal/domain/prompt"
	"github.com/rpggio/supportbill/internal/domain/session"
	"github.com/rpggio/supportbill/internal/domain/tenant"
	"github.com/rpggio/supportbill/internal/repository"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) time.Time {
	t, err := time.Parse(extract.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

type fakeRoster struct {
	subjects     map[string]extract.Subject
	assignments  map[string][]extract.Assignment
	worked       map[string][]extract.WorkedTime
	failSubject  string
	panicSubject string
}

func newFakeRoster() *fakeRoster {
	return &fakeRoster{
		subjects:    map[string]extract.Subject{},
		assignments: map[string][]extract.Assignment{},
		worked:      map[string][]extract.WorkedTime{},
	}
}

// addShift gives subject one assignment for item with a single schedule entry.
func (r *fakeRoster) addShift(subjectID, item, date, start, end string, breakMinutes int) {
	if _, ok := r.subjects[subjectID]; !ok {
		r.subjects[subjectID] = extract.Subject{ID: subjectID, TenantID: "T", Email: subjectID + "@example.com"}
	}
	aID := fmt.Sprintf("a-%s-%d", subjectID, len(r.assignments[subjectID]))
	r.assignments[subjectID] = append(r.assignments[subjectID], extract.Assignment{
		ID: aID, TenantID: "T", SubjectID: subjectID, ItemCode: item, Active: true,
		Schedule: []extract.ScheduleEntry{{ID: aID + "-e", AssignmentID: aID, Date: day(date), Start: start, End: end, BreakMinutes: breakMinutes}},
	})
}

func (r *fakeRoster) GetSubject(_ context.Context, _ string, subjectID string) (*extract.Subject, error) {
	if subjectID == r.panicSubject {
		panic("roster exploded")
	}
	if subjectID == r.failSubject {
		return nil, errors.New("roster unavailable")
	}
	s, ok := r.subjects[subjectID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *fakeRoster) ListAssignments(_ context.Context, _ string, subjectID string) ([]extract.Assignment, error) {
	return r.assignments[subjectID], nil
}

func (r *fakeRoster) ListWorkedTime(_ context.Context, _ string, assignmentID string, _, _ time.Time) ([]extract.WorkedTime, error) {
	return r.worked[assignmentID], nil
}

type fakeResolver struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	calls  int
}

func (f *fakeResolver) Resolve(_ context.Context, req pricing.ResolveRequest) (pricing.Resolution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	price, ok := f.prices[req.ItemCode]
	if !ok {
		limit := dec("62.17")
		return pricing.Resolution{ItemCode: req.ItemCode, Provenance: pricing.ProvenanceMissing, Cap: &limit, Reason: "no price configured"}, nil
	}
	return pricing.Resolution{ItemCode: req.ItemCode, Unit: catalogue.UnitHour, Price: price, Provenance: pricing.ProvenanceTenant}, nil
}

type resolverFunc func(ctx context.Context, req pricing.ResolveRequest) (pricing.Resolution, error)

func (f resolverFunc) Resolve(ctx context.Context, req pricing.ResolveRequest) (pricing.Resolution, error) {
	return f(ctx, req)
}

type unreachableLookup struct{}

func (unreachableLookup) GetItem(context.Context, string) (*catalogue.SupportItem, error) {
	return nil, errors.New("connection refused")
}

type fakeLookup map[string]*catalogue.SupportItem

func (f fakeLookup) GetItem(_ context.Context, code string) (*catalogue.SupportItem, error) {
	item, ok := f[code]
	if !ok {
		return nil, catalogue.ErrItemNotFound
	}
	return item, nil
}

type fakePrompts struct {
	mu      sync.Mutex
	created []prompt.Prompt
	fail    error
}

func (f *fakePrompts) Create(_ context.Context, req prompt.CreateRequest) (*prompt.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	p := prompt.Prompt{
		ID: fmt.Sprintf("p%d", len(f.created)+1), SessionID: req.SessionID, TenantID: req.TenantID,
		ItemCode: req.ItemCode, Region: req.Region, Tier: req.Tier, Status: prompt.StatusPending,
	}
	f.created = append(f.created, p)
	return &p, nil
}

func (f *fakePrompts) ListPending(_ context.Context, _ string, sessionID string) ([]prompt.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []prompt.Prompt
	for _, p := range f.created {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func (f *fakeSessions) Start(_ context.Context, req session.StartRequest) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessions == nil {
		f.sessions = map[string]*session.Session{}
	}
	s := &session.Session{ID: fmt.Sprintf("sess-%d", len(f.sessions)+1), TenantID: req.TenantID, SubjectID: req.SubjectID, Status: session.StatusOpen}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeSessions) Get(_ context.Context, _ string, id string) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) Discard(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type fakeSettings struct{}

func (fakeSettings) Get(_ context.Context, tenantID string) (*tenant.Settings, error) {
	return &tenant.Settings{TenantID: tenantID, DefaultRegion: "R", DefaultTier: catalogue.TierStandard}, nil
}

type fakeExpenses []extract.Expense

func (f fakeExpenses) ListApprovedReimbursable(context.Context, string, string, time.Time, time.Time) ([]extract.Expense, error) {
	return f, nil
}

type harness struct {
	roster   *fakeRoster
	resolver *fakeResolver
	prompts  *fakePrompts
	sessions *fakeSessions
	expenses fakeExpenses
	svc      *generation.Service
}

func newHarness(expenses ...extract.Expense) *harness {
	h := &harness{
		roster:   newFakeRoster(),
		resolver: &fakeResolver{prices: map[string]decimal.Decimal{}},
		prompts:  &fakePrompts{},
		sessions: &fakeSessions{},
		expenses: expenses,
	}
	itemX := &catalogue.SupportItem{Code: "X", Name: "Item X", Unit: catalogue.UnitHour}
	itemX.SetCap(catalogue.TierStandard, "R", dec("62.17"))
	lookup := fakeLookup{"X": itemX}

	h.svc = generation.NewService(generation.Dependencies{
		Roster:    h.roster,
		Expenses:  h.expenses,
		Mapper:    extract.NewExpenseMapper(nil, lookup, nil),
		Resolver:  h.resolver,
		Validator: pricing.NewValidator(lookup, nil),
		Prompts:   h.prompts,
		Sessions:  h.sessions,
		Settings:  fakeSettings{},
	}, 0, nil)
	return h
}

func request(subjectID string) generation.Request {
	return generation.Request{TenantID: "T", SubjectID: subjectID, RequesterID: "coordinator", StartDate: "2026-03-01", EndDate: "2026-03-31"}
}
