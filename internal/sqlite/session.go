package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rpggio/supportbill/internal/domain/session"
	"github.com/rpggio/supportbill/internal/repository"
)

// SessionRepository implements session.SessionRepository for SQLite
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `
	id, tenant_id, subject_id, requester_id, start_date, end_date,
	status, created_at, completed_at, completed_by
`

func scanSession(s rowScanner) (*session.Session, error) {
	var sess session.Session
	var completedAt sql.NullTime
	if err := s.Scan(
		&sess.ID,
		&sess.TenantID,
		&sess.SubjectID,
		&sess.RequesterID,
		&sess.StartDate,
		&sess.EndDate,
		&sess.Status,
		&sess.CreatedAt,
		&completedAt,
		&sess.CompletedBy,
	); err != nil {
		return nil, err
	}
	sess.CompletedAt = timePtr(completedAt)
	return &sess, nil
}

// Create creates a new session
func (r *SessionRepository) Create(ctx context.Context, sess *session.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO generation_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sess.ID,
		sess.TenantID,
		sess.SubjectID,
		sess.RequesterID,
		sess.StartDate,
		sess.EndDate,
		sess.Status,
		sess.CreatedAt,
		nullTime(sess.CompletedAt),
		sess.CompletedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, tenantID, id string) (*session.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM generation_sessions WHERE id = ? AND tenant_id = ?`, id, tenantID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// Update updates a session
func (r *SessionRepository) Update(ctx context.Context, sess *session.Session) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE generation_sessions
		SET status = ?, completed_at = ?, completed_by = ?
		WHERE id = ? AND tenant_id = ?
	`,
		sess.Status,
		nullTime(sess.CompletedAt),
		sess.CompletedBy,
		sess.ID,
		sess.TenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes an open session and its prompts in one transaction
func (r *SessionRepository) Delete(ctx context.Context, tenantID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM price_prompts WHERE session_id = ? AND tenant_id = ?`, id, tenantID); err != nil {
		return fmt.Errorf("failed to delete session prompts: %w", err)
	}
	result, err := tx.ExecContext(ctx,
		`DELETE FROM generation_sessions WHERE id = ? AND tenant_id = ? AND status = 'open'`, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return tx.Commit()
}

// List returns sessions matching the given filters, newest first
func (r *SessionRepository) List(ctx context.Context, tenantID string, opts session.ListOptions) ([]session.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM generation_sessions WHERE tenant_id = ?`
	args := []interface{}{tenantID}
	conditions := []string{}

	if opts.SubjectID != "" {
		conditions = append(conditions, "subject_id = ?")
		args = append(args, opts.SubjectID)
	}
	if opts.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *opts.Status)
	}
	if len(conditions) > 0 {
		query += " AND " + joinConditions(conditions)
	}

	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []session.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}
	return sessions, nil
}
