package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpggio/supportbill/internal/domain/audit"
	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/extract"
	"github.com/rpggio/supportbill/internal/domain/lineitem"
	"github.com/rpggio/supportbill/internal/domain/pricing"
	"github.com/rpggio/supportbill/internal/domain/prompt"
	"github.com/rpggio/supportbill/internal/domain/session"
	"github.com/rpggio/supportbill/internal/metrics"
	"github.com/rpggio/supportbill/internal/repository"
	"github.com/rpggio/supportbill/internal/validate"
)

// DefaultBatchSize and MaxBatchSize bound bulk concurrency.
const (
	DefaultBatchSize = 10
	MinBatchSize     = 1
	MaxBatchSize     = 50
)

// Dependencies are the collaborators of a Service.
type Dependencies struct {
	Roster    Roster
	Expenses  ExpenseFeed
	Extractor *extract.Extractor
	Mapper    *extract.ExpenseMapper
	Resolver  PriceResolver
	Validator BatchValidator
	Prompts   PromptStore
	Sessions  Sessions
	Settings  SettingsSource
	Audit     Auditor
}

// Service orchestrates invoice line-item generation.
type Service struct {
	deps             Dependencies
	defaultBatchSize int
	now              func() time.Time
	logger           *slog.Logger
}

// NewService creates a new generation service. defaultBatchSize is used by
// bulk runs that don't specify one.
func NewService(deps Dependencies, defaultBatchSize int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.NewExtractor(logger)
	}
	if defaultBatchSize < MinBatchSize || defaultBatchSize > MaxBatchSize {
		defaultBatchSize = DefaultBatchSize
	}
	return &Service{deps: deps, defaultBatchSize: defaultBatchSize, now: time.Now, logger: logger}
}

// WithClock replaces the clock used to pick effective overrides.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Generate runs the single-subject pipeline:
// validate params, extract, resolve prices, validate batch, then raise prompts
// for unpriced items or assemble the result. No step is retried. A new session
// is only stored once pricing has succeeded.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	res, err := s.generate(ctx, req)
	metrics.GenerationDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.GenerationRuns.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.GenerationRuns.WithLabelValues(string(res.Status)).Inc()
	return res, nil
}

func (s *Service) generate(ctx context.Context, req Request) (*Result, error) {
	dates, err := validateRequest(req)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With("tenant_id", req.TenantID, "subject_id", req.SubjectID)

	settings, err := s.deps.Settings.Get(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("loading tenant settings: %w", err)
	}

	subject, err := s.deps.Roster.GetSubject(ctx, req.TenantID, req.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSubjectNotFound, req.SubjectID)
		}
		return nil, fmt.Errorf("loading subject: %w", err)
	}
	if subject.Region == "" {
		subject.Region = settings.DefaultRegion
	}

	var sess *session.Session
	if req.SessionID != "" {
		if sess, err = s.existingSession(ctx, req); err != nil {
			return nil, err
		}
	}

	skeletons, err := s.extract(ctx, req, *subject, dates)
	if err != nil {
		return nil, err
	}

	var expenseItems []lineitem.LineItem
	if !req.ExcludeExpenses && s.deps.Expenses != nil && s.deps.Mapper != nil {
		expenses, err := s.deps.Expenses.ListApprovedReimbursable(ctx, req.TenantID, req.SubjectID, dates.Start, dates.End)
		if err != nil {
			return nil, fmt.Errorf("loading expenses: %w", err)
		}
		expenseItems, err = s.deps.Mapper.Convert(ctx, expenses)
		if err != nil {
			return nil, fmt.Errorf("converting expenses: %w", err)
		}
	}

	priced, unpriced, resolutions, warnings, err := s.price(ctx, req, skeletons)
	if err != nil {
		return nil, err
	}

	items := append(priced, expenseItems...)
	validation := s.deps.Validator.ValidateBatch(ctx, items, settings.DefaultRegion, settings.DefaultTier)
	if len(warnings) > 0 {
		validation.Degraded = true
		validation.Warnings = append(validation.Warnings, warnings...)
		logger.Warn("pricing degraded", "warnings", warnings)
	}
	recordValidation(items, validation)

	fresh := sess == nil
	if fresh {
		if sess, err = s.startSession(ctx, req); err != nil {
			return nil, err
		}
	}

	result := &Result{
		SessionID:  sess.ID,
		TenantID:   req.TenantID,
		SubjectID:  req.SubjectID,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Status:     StatusReady,
		LineItems:  items,
		Validation: validation,
		Summary:    summarize(items),
	}
	if result.LineItems == nil {
		result.LineItems = []lineitem.LineItem{}
	}

	if req.SkipPricePrompts {
		result.Summary.DroppedCount = len(unpriced)
		if len(unpriced) > 0 {
			logger.Info("dropped unpriced line items", "count", len(unpriced))
		}
	} else if len(unpriced) > 0 {
		result.Unpriced = unpriced
		result.Summary.UnpricedCount = len(unpriced)
		prompts, err := s.raisePrompts(ctx, req, *subject, sess.ID, unpriced, resolutions)
		if err != nil {
			if fresh {
				s.discardSession(ctx, logger, req.TenantID, sess.ID)
			}
			return nil, err
		}
		result.Prompts = prompts
		result.Status = StatusAwaitingPrices
	}

	if s.deps.Audit != nil {
		s.deps.Audit.Record(ctx, audit.Event{
			TenantID:   req.TenantID,
			Action:     audit.ActionInvoiceGenerated,
			EntityType: "generation_session",
			EntityID:   sess.ID,
			Actor:      req.RequesterID,
			NewValues: map[string]any{
				"subject_id":   req.SubjectID,
				"status":       string(result.Status),
				"item_count":   result.Summary.ItemCount,
				"total_amount": result.Summary.TotalAmount.StringFixed(2),
				"unpriced":     len(unpriced),
			},
			Metadata: map[string]any{"start_date": req.StartDate, "end_date": req.EndDate},
		})
	}

	logger.Info("generated line items",
		"session_id", sess.ID,
		"status", result.Status,
		"items", result.Summary.ItemCount,
		"unpriced", len(unpriced),
		"total", result.Summary.TotalAmount.StringFixed(2),
	)
	return result, nil
}

func validateRequest(req Request) (extract.DateRange, error) {
	if err := validate.Struct(req, ErrInvalidInput); err != nil {
		return extract.DateRange{}, err
	}
	dates, err := extract.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return extract.DateRange{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return dates, nil
}

func (s *Service) startSession(ctx context.Context, req Request) (*session.Session, error) {
	sess, err := s.deps.Sessions.Start(ctx, session.StartRequest{
		TenantID:    req.TenantID,
		SubjectID:   req.SubjectID,
		RequesterID: req.RequesterID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	return sess, nil
}

// discardSession removes a session this run started, with any prompts raised
// before the failure. It runs even if ctx was cancelled.
func (s *Service) discardSession(ctx context.Context, logger *slog.Logger, tenantID, id string) {
	if err := s.deps.Sessions.Discard(context.WithoutCancel(ctx), tenantID, id); err != nil {
		logger.Warn("failed to discard session", "session_id", id, "error", err)
	}
}

func (s *Service) existingSession(ctx context.Context, req Request) (*session.Session, error) {
	sess, err := s.deps.Sessions.Get(ctx, req.TenantID, req.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, req.SessionID)
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if sess.Status == session.StatusCompleted {
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, sess.ID)
	}
	return sess, nil
}

func (s *Service) extract(ctx context.Context, req Request, subject extract.Subject, dates extract.DateRange) ([]lineitem.LineItem, error) {
	assignments, err := s.deps.Roster.ListAssignments(ctx, req.TenantID, req.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("loading assignments: %w", err)
	}

	var items []lineitem.LineItem
	for _, a := range assignments {
		extracted := s.deps.Extractor.Extract(a, subject, nil, dates)
		if len(extracted) == 0 {
			worked, err := s.deps.Roster.ListWorkedTime(ctx, req.TenantID, a.ID, dates.Start, dates.End)
			if err != nil {
				return nil, fmt.Errorf("loading worked time for assignment %s: %w", a.ID, err)
			}
			extracted = s.deps.Extractor.Extract(a, subject, worked, dates)
		}
		items = append(items, extracted...)
	}
	return items, nil
}

type priceKey struct {
	code   string
	region catalogue.Region
	tier   catalogue.Tier
}

// price resolves every skeleton. Identical (code, region, tier) triples are
// resolved once per run so all lines of a run agree. When a pricing store is
// unreachable the affected items are left unpriced and a warning is returned.
func (s *Service) price(ctx context.Context, req Request, skeletons []lineitem.LineItem) (priced, unpriced []lineitem.LineItem, resolutions map[priceKey]pricing.Resolution, warnings []string, err error) {
	at := s.now()
	resolutions = make(map[priceKey]pricing.Resolution)
	for _, sk := range skeletons {
		key := priceKey{code: sk.ItemCode, region: sk.Region, tier: sk.Tier}
		res, ok := resolutions[key]
		if !ok {
			res, err = s.deps.Resolver.Resolve(ctx, pricing.ResolveRequest{
				ItemCode:  sk.ItemCode,
				TenantID:  req.TenantID,
				SubjectID: req.SubjectID,
				Region:    sk.Region,
				Tier:      sk.Tier,
				At:        at,
			})
			if errors.Is(err, pricing.ErrDownstreamUnavailable) {
				warnings = append(warnings, fmt.Sprintf("price for %s unavailable: %v", sk.ItemCode, err))
				res = pricing.Resolution{
					ItemCode:   sk.ItemCode,
					Provenance: pricing.ProvenanceMissing,
					Reason:     "pricing data unavailable",
				}
			} else if err != nil {
				return nil, nil, nil, nil, fmt.Errorf("resolving price for %s: %w", sk.ItemCode, err)
			}
			resolutions[key] = res
		}

		item := pricing.Apply(sk, res)
		if item.Priced() {
			priced = append(priced, item)
		} else {
			unpriced = append(unpriced, item)
		}
	}
	return priced, unpriced, resolutions, warnings, nil
}

// raisePrompts opens one prompt per distinct unpriced (code, region, tier),
// skipping any already pending in the session.
func (s *Service) raisePrompts(ctx context.Context, req Request, subject extract.Subject, sessionID string, unpriced []lineitem.LineItem, resolutions map[priceKey]pricing.Resolution) ([]prompt.Prompt, error) {
	existing, err := s.deps.Prompts.ListPending(ctx, req.TenantID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing pending prompts: %w", err)
	}
	seen := make(map[priceKey]bool, len(existing))
	prompts := make([]prompt.Prompt, 0, len(unpriced))
	for _, p := range existing {
		seen[priceKey{code: p.ItemCode, region: p.Region, tier: p.Tier}] = true
		prompts = append(prompts, p)
	}

	for _, item := range unpriced {
		key := priceKey{code: item.ItemCode, region: item.Region, tier: item.Tier}
		if seen[key] {
			continue
		}
		seen[key] = true

		res := resolutions[key]
		p, err := s.deps.Prompts.Create(ctx, prompt.CreateRequest{
			SessionID:      sessionID,
			TenantID:       req.TenantID,
			RequesterID:    req.RequesterID,
			SubjectEmail:   subject.Email,
			SubjectID:      subject.ID,
			ItemCode:       item.ItemCode,
			ItemName:       res.ItemName,
			Region:         item.Region,
			Tier:           item.Tier,
			SuggestedPrice: res.Cap,
			Cap:            res.Cap,
			Reason:         item.PriceReason,
		})
		if err != nil {
			return nil, fmt.Errorf("raising price prompt for %s: %w", item.ItemCode, err)
		}
		prompts = append(prompts, *p)
	}
	return prompts, nil
}

func recordValidation(items []lineitem.LineItem, v pricing.BatchResult) {
	for _, it := range items {
		metrics.LineItems.WithLabelValues(string(it.Provenance)).Inc()
		if it.ExceedsCap {
			metrics.CapExceeded.Inc()
		}
	}
	if v.Degraded {
		metrics.ValidationDegraded.Inc()
	}
	metrics.CompliancePercentage.Set(v.Summary.CompliancePercentage.InexactFloat64())
}
