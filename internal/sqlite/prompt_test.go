package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/supportbill/internal/domain/prompt"
	"github.com/rpggio/supportbill/internal/domain/session"
	"github.com/rpggio/supportbill/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 31, 17, 0, 0, 0, time.UTC)

func createTestSession(t *testing.T, db *DB, id string) *session.Session {
	t.Helper()
	sess := &session.Session{
		ID:          id,
		TenantID:    "tenant-1",
		SubjectID:   "subject-1",
		RequesterID: "user-1",
		StartDate:   "2026-03-01",
		EndDate:     "2026-03-31",
		Status:      session.StatusOpen,
		CreatedAt:   testNow,
	}
	require.NoError(t, NewSessionRepository(db).Create(context.Background(), sess))
	return sess
}

func newTestPrompt(id, sessionID, code string) *prompt.Prompt {
	limit := decimal.RequireFromString("62.17")
	return &prompt.Prompt{
		ID:           id,
		SessionID:    sessionID,
		TenantID:     "tenant-1",
		SubjectID:    "subject-1",
		RequesterID:  "user-1",
		SubjectEmail: "sam@example.com",
		ItemCode:     code,
		ItemName:     "Self-Care",
		Region:       "NSW",
		Tier:         "standard",
		Cap:          &limit,
		Reason:       "no pricing configured",
		Status:       prompt.StatusPending,
		CreatedAt:    testNow,
	}
}

func TestSessionRepository_Lifecycle(t *testing.T) {
	db := NewTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	sess := createTestSession(t, db, "sess-1")
	require.ErrorIs(t, repo.Create(ctx, sess), repository.ErrAlreadyExists)

	got, err := repo.Get(ctx, "tenant-1", "sess-1")
	require.NoError(t, err)
	require.Equal(t, session.StatusOpen, got.Status)
	require.Equal(t, "2026-03-01", got.StartDate)
	require.Nil(t, got.CompletedAt)

	_, err = repo.Get(ctx, "tenant-2", "sess-1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	completed := testNow.Add(time.Hour)
	got.Status = session.StatusCompleted
	got.CompletedAt = &completed
	got.CompletedBy = "user-2"
	require.NoError(t, repo.Update(ctx, got))

	got, err = repo.Get(ctx, "tenant-1", "sess-1")
	require.NoError(t, err)
	require.Equal(t, session.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.Equal(t, "user-2", got.CompletedBy)

	createTestSession(t, db, "sess-2")
	open := session.StatusOpen
	list, err := repo.List(ctx, "tenant-1", session.ListOptions{Status: &open})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "sess-2", list[0].ID)

	missing := &session.Session{ID: "nope", TenantID: "tenant-1", Status: session.StatusCompleted}
	require.ErrorIs(t, repo.Update(ctx, missing), repository.ErrNotFound)
}

func TestSessionRepository_DeleteOpenOnly(t *testing.T) {
	db := NewTestDB(t)
	repo := NewSessionRepository(db)
	prompts := NewPromptRepository(db)
	ctx := context.Background()

	createTestSession(t, db, "sess-1")
	require.NoError(t, prompts.Create(ctx, newTestPrompt("p1", "sess-1", "ITEM")))

	require.ErrorIs(t, repo.Delete(ctx, "tenant-2", "sess-1"), repository.ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "tenant-1", "sess-1"))

	_, err := repo.Get(ctx, "tenant-1", "sess-1")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = prompts.Get(ctx, "tenant-1", "p1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	done := createTestSession(t, db, "sess-2")
	done.Status = session.StatusCompleted
	completed := testNow
	done.CompletedAt = &completed
	require.NoError(t, repo.Update(ctx, done))
	require.ErrorIs(t, repo.Delete(ctx, "tenant-1", "sess-2"), repository.ErrNotFound)

	_, err = repo.Get(ctx, "tenant-1", "sess-2")
	require.NoError(t, err)
}

func TestPromptRepository_CreateRequiresSession(t *testing.T) {
	repo := NewPromptRepository(NewTestDB(t))
	err := repo.Create(context.Background(), newTestPrompt("p1", "missing", "ITEM"))
	require.ErrorIs(t, err, repository.ErrForeignKeyViolation)
}

func TestPromptRepository_CreateAndGet(t *testing.T) {
	db := NewTestDB(t)
	repo := NewPromptRepository(db)
	ctx := context.Background()
	createTestSession(t, db, "sess-1")

	require.NoError(t, repo.Create(ctx, newTestPrompt("p1", "sess-1", "ITEM")))

	got, err := repo.Get(ctx, "tenant-1", "p1")
	require.NoError(t, err)
	require.Equal(t, prompt.StatusPending, got.Status)
	require.Equal(t, "sam@example.com", got.SubjectEmail)
	require.NotNil(t, got.Cap)
	require.Equal(t, "62.17", got.Cap.StringFixed(2))
	require.Nil(t, got.SuggestedPrice)
	require.Nil(t, got.Resolution)
	require.Nil(t, got.ResolvedAt)

	_, err = repo.Get(ctx, "tenant-2", "p1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPromptRepository_UpdateChecksStatus(t *testing.T) {
	db := NewTestDB(t)
	repo := NewPromptRepository(db)
	ctx := context.Background()
	createTestSession(t, db, "sess-1")

	p := newTestPrompt("p1", "sess-1", "ITEM")
	require.NoError(t, repo.Create(ctx, p))

	resolvedAt := testNow.Add(time.Minute)
	p.Status = prompt.StatusResolved
	p.ResolvedAt = &resolvedAt
	p.Resolution = &prompt.Resolution{
		Price:               decimal.RequireFromString("58.00"),
		SaveAsTenantPricing: true,
		Notes:               "agreed rate",
		ResolvedBy:          "user-2",
	}
	require.NoError(t, repo.Update(ctx, p, prompt.StatusPending))

	// a second writer still expecting pending loses
	p.Status = prompt.StatusCancelled
	p.Resolution = nil
	require.ErrorIs(t, repo.Update(ctx, p, prompt.StatusPending), repository.ErrConflict)

	missing := newTestPrompt("nope", "sess-1", "ITEM")
	require.ErrorIs(t, repo.Update(ctx, missing, prompt.StatusPending), repository.ErrNotFound)

	got, err := repo.Get(ctx, "tenant-1", "p1")
	require.NoError(t, err)
	require.Equal(t, prompt.StatusResolved, got.Status)
	require.NotNil(t, got.Resolution)
	require.Equal(t, "58.00", got.Resolution.Price.StringFixed(2))
	require.True(t, got.Resolution.SaveAsTenantPricing)
	require.False(t, got.Resolution.SaveAsSubjectPricing)
	require.Equal(t, "agreed rate", got.Resolution.Notes)
	require.Equal(t, "user-2", got.Resolution.ResolvedBy)
}

func TestPromptRepository_ListAndCountBySession(t *testing.T) {
	db := NewTestDB(t)
	repo := NewPromptRepository(db)
	ctx := context.Background()
	createTestSession(t, db, "sess-1")
	createTestSession(t, db, "sess-2")

	require.NoError(t, repo.Create(ctx, newTestPrompt("p-b", "sess-1", "B")))
	require.NoError(t, repo.Create(ctx, newTestPrompt("p-a", "sess-1", "A")))
	require.NoError(t, repo.Create(ctx, newTestPrompt("p-c", "sess-2", "C")))

	list, err := repo.ListBySession(ctx, "tenant-1", "sess-1", prompt.StatusPending)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "p-b", list[0].ID, "prompts are listed in creation order")
	require.Equal(t, "p-a", list[1].ID)

	n, err := repo.CountBySession(ctx, "sess-1", prompt.StatusPending)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	p := list[0]
	p.Status = prompt.StatusCancelled
	p.CancelReason = "not billable"
	require.NoError(t, repo.Update(ctx, &p, prompt.StatusPending))

	n, err = repo.CountBySession(ctx, "sess-1", prompt.StatusPending)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	cancelled, err := repo.ListBySession(ctx, "tenant-1", "sess-1", prompt.StatusCancelled)
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	require.Equal(t, "not billable", cancelled[0].CancelReason)
}
