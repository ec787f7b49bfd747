package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rpggio/supportbill/internal/domain/prompt"
	"github.com/rpggio/supportbill/internal/repository"
	"github.com/shopspring/decimal"
)

// PromptRepository implements prompt.Repository for SQLite
type PromptRepository struct {
	db *DB
}

// NewPromptRepository creates a new PromptRepository
func NewPromptRepository(db *DB) *PromptRepository {
	return &PromptRepository{db: db}
}

const promptColumns = `
	id, session_id, tenant_id, subject_id, requester_id, subject_email,
	item_code, item_name, region, tier, suggested_price, cap, reason, status,
	created_at, resolved_at, resolved_price, save_as_tenant_pricing,
	save_as_subject_pricing, resolution_notes, resolved_by, cancel_reason
`

func scanPrompt(s rowScanner) (*prompt.Prompt, error) {
	var p prompt.Prompt
	var suggested, limit, resolvedPrice decimal.NullDecimal
	var resolvedAt sql.NullTime
	var res prompt.Resolution
	if err := s.Scan(
		&p.ID,
		&p.SessionID,
		&p.TenantID,
		&p.SubjectID,
		&p.RequesterID,
		&p.SubjectEmail,
		&p.ItemCode,
		&p.ItemName,
		&p.Region,
		&p.Tier,
		&suggested,
		&limit,
		&p.Reason,
		&p.Status,
		&p.CreatedAt,
		&resolvedAt,
		&resolvedPrice,
		&res.SaveAsTenantPricing,
		&res.SaveAsSubjectPricing,
		&res.Notes,
		&res.ResolvedBy,
		&p.CancelReason,
	); err != nil {
		return nil, err
	}
	p.SuggestedPrice = decimalPtr(suggested)
	p.Cap = decimalPtr(limit)
	p.ResolvedAt = timePtr(resolvedAt)
	if resolvedPrice.Valid {
		res.Price = resolvedPrice.Decimal
		p.Resolution = &res
	}
	return &p, nil
}

// Create inserts a pending prompt
func (r *PromptRepository) Create(ctx context.Context, p *prompt.Prompt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO price_prompts (
			id, session_id, tenant_id, subject_id, requester_id, subject_email,
			item_code, item_name, region, tier, suggested_price, cap, reason, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID,
		p.SessionID,
		p.TenantID,
		p.SubjectID,
		p.RequesterID,
		p.SubjectEmail,
		p.ItemCode,
		p.ItemName,
		p.Region,
		p.Tier,
		nullDecimal(p.SuggestedPrice),
		nullDecimal(p.Cap),
		p.Reason,
		p.Status,
		p.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create price prompt: %w", err)
	}
	return nil
}

// Get retrieves a prompt by ID
func (r *PromptRepository) Get(ctx context.Context, tenantID, id string) (*prompt.Prompt, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+promptColumns+` FROM price_prompts WHERE id = ? AND tenant_id = ?`, id, tenantID)
	p, err := scanPrompt(row)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price prompt: %w", err)
	}
	return p, nil
}

// Update writes p if its stored status still equals expected
func (r *PromptRepository) Update(ctx context.Context, p *prompt.Prompt, expected prompt.Status) error {
	var resolvedPrice decimal.NullDecimal
	var res prompt.Resolution
	if p.Resolution != nil {
		res = *p.Resolution
		resolvedPrice = decimal.NullDecimal{Decimal: res.Price, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE price_prompts
		SET status = ?, resolved_at = ?, resolved_price = ?, save_as_tenant_pricing = ?,
		    save_as_subject_pricing = ?, resolution_notes = ?, resolved_by = ?, cancel_reason = ?
		WHERE id = ? AND tenant_id = ? AND status = ?
	`,
		p.Status,
		nullTime(p.ResolvedAt),
		resolvedPrice,
		boolInt(res.SaveAsTenantPricing),
		boolInt(res.SaveAsSubjectPricing),
		res.Notes,
		res.ResolvedBy,
		p.CancelReason,
		p.ID,
		p.TenantID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update price prompt: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		if _, err := r.Get(ctx, p.TenantID, p.ID); err != nil {
			return err
		}
		return repository.ErrConflict
	}
	return nil
}

// ListBySession returns a session's prompts with the given status in creation order
func (r *PromptRepository) ListBySession(ctx context.Context, tenantID, sessionID string, status prompt.Status) ([]prompt.Prompt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+promptColumns+` FROM price_prompts
		 WHERE tenant_id = ? AND session_id = ? AND status = ?
		 ORDER BY seq`,
		tenantID, sessionID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list price prompts: %w", err)
	}
	defer rows.Close()

	prompts := []prompt.Prompt{}
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price prompt: %w", err)
		}
		prompts = append(prompts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price prompts: %w", err)
	}
	return prompts, nil
}

// CountBySession counts a session's prompts with the given status
func (r *PromptRepository) CountBySession(ctx context.Context, sessionID string, status prompt.Status) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM price_prompts WHERE session_id = ? AND status = ?`, sessionID, status,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count price prompts: %w", err)
	}
	return n, nil
}
