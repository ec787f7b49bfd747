package audit

import (
	"context"
	"log/slog"
	"time"
)

// Service writes audit events. Failures are logged and never returned, so an
// unavailable audit log cannot fail a billing operation.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new audit service. repo may be nil to disable auditing.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Record appends event to the audit log.
func (s *Service) Record(ctx context.Context, event Event) {
	if s == nil || s.repo == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	if err := s.repo.Record(ctx, &event); err != nil {
		s.logger.Warn("audit record failed",
			"action", event.Action,
			"entity_type", event.EntityType,
			"entity_id", event.EntityID,
			"tenant_id", event.TenantID,
			"error", err,
		)
	}
}

// List returns recent audit events for a tenant, newest first.
func (s *Service) List(ctx context.Context, tenantID string, opts ListOptions) ([]Event, error) {
	if s == nil || s.repo == nil {
		return nil, nil
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	return s.repo.List(ctx, tenantID, opts)
}
