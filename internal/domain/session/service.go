package session

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
)

// Service handles generation session operations.
type Service struct {
	sessions SessionRepository
	pending  PendingCounter
	audit    Auditor
	now      func() time.Time
	logger   *slog.Logger
}

// NewService creates a new session service.
func NewService(sessions SessionRepository, pending PendingCounter, auditor Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{sessions: sessions, pending: pending, audit: auditor, now: time.Now, logger: logger}
}

// StartRequest describes a new generation session.
type StartRequest struct {
	TenantID    string
	SubjectID   string
	RequesterID string
	StartDate   string
	EndDate     string
}

// Start opens a new session.
func (s *Service) Start(ctx context.Context, req StartRequest) (*Session, error) {
	if strings.TrimSpace(req.TenantID) == "" || strings.TrimSpace(req.RequesterID) == "" {
		return nil, ErrInvalidInput
	}
	sess := &Session{
		ID:          uuid.NewString(),
		TenantID:    req.TenantID,
		SubjectID:   req.SubjectID,
		RequesterID: req.RequesterID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Status:      StatusOpen,
		CreatedAt:   s.now(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return sess, nil
}

// Get returns a session by ID.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidInput
	}
	sess, err := s.sessions.Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return sess, nil
}

// Complete marks a session complete. The pending prompt count is read from the
// prompt store at the moment of the check; any pending prompt rejects the call
// with a *PendingPromptsError.
func (s *Service) Complete(ctx context.Context, tenantID, id, actor string) (*Session, error) {
	sess, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if sess.Status == StatusCompleted {
		return sess, nil
	}

	count, err := s.pending.CountPending(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("checking pending prompts: %w", err)
	}
	if count > 0 {
		return nil, &PendingPromptsError{SessionID: sess.ID, Count: count}
	}

	now := s.now()
	updated := *sess
	updated.Status = StatusCompleted
	updated.CompletedAt = &now
	updated.CompletedBy = actor
	if err := s.sessions.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("completing session: %w", err)
	}

	if s.audit != nil {
		s.audit.Record(ctx, audit.Event{
			TenantID:   tenantID,
			Action:     audit.ActionSessionCompleted,
			EntityType: "generation_session",
			EntityID:   updated.ID,
			Actor:      actor,
			OldValues:  map[string]any{"status": string(StatusOpen)},
			NewValues:  map[string]any{"status": string(StatusCompleted)},
		})
	}
	return &updated, nil
}

// Discard removes an open session and the prompts raised in it. Completed
// sessions are never removed.
func (s *Service) Discard(ctx context.Context, tenantID, id string) error {
	sess, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if sess.Status != StatusOpen {
		return fmt.Errorf("%w: session %s is %s", ErrInvalidInput, id, sess.Status)
	}
	if err := s.sessions.Delete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("discarding session: %w", err)
	}
	s.logger.Debug("discarded session", "tenant_id", tenantID, "session_id", id)
	return nil
}

// List returns sessions for a tenant.
func (s *Service) List(ctx context.Context, tenantID string, opts ListOptions) ([]Session, error) {
	return s.sessions.List(ctx, tenantID, opts)
}
