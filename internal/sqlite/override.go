package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/pricing"
	"github.com/rpggio/supportbill/internal/repository"
	"github.com/shopspring/decimal"
)

// OverrideRepository implements pricing.OverrideRepository for SQLite
type OverrideRepository struct {
	db *DB
}

// NewOverrideRepository creates a new OverrideRepository
func NewOverrideRepository(db *DB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

const overrideColumns = `
	id, tenant_id, subject_id, item_code, mode, amount, factor, based_on_tier,
	effective_from, effective_to, approval, active, version, created_by, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOverride(s rowScanner) (*pricing.Override, error) {
	var o pricing.Override
	var mode pricing.ModeKind
	var amount, factor decimal.NullDecimal
	var basedOn sql.NullString
	var effectiveTo sql.NullTime
	if err := s.Scan(
		&o.ID,
		&o.Scope.TenantID,
		&o.Scope.SubjectID,
		&o.ItemCode,
		&mode,
		&amount,
		&factor,
		&basedOn,
		&o.EffectiveFrom,
		&effectiveTo,
		&o.Approval,
		&o.Active,
		&o.Version,
		&o.CreatedBy,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}

	switch mode {
	case pricing.ModeFixed:
		o.Mode = pricing.Fixed{Amount: amount.Decimal}
	case pricing.ModeMultiplier:
		o.Mode = pricing.Multiplier{Factor: factor.Decimal, BasedOnTier: catalogue.Tier(basedOn.String)}
	default:
		return nil, fmt.Errorf("unknown override mode %q", mode)
	}
	o.EffectiveTo = timePtr(effectiveTo)
	return &o, nil
}

func modeColumns(m pricing.Mode) (amount, factor decimal.NullDecimal, basedOn sql.NullString) {
	switch v := m.(type) {
	case pricing.Fixed:
		amount = decimal.NullDecimal{Decimal: v.Amount, Valid: true}
	case pricing.Multiplier:
		factor = decimal.NullDecimal{Decimal: v.Factor, Valid: true}
		if v.BasedOnTier != "" {
			basedOn = sql.NullString{String: string(v.BasedOnTier), Valid: true}
		}
	}
	return amount, factor, basedOn
}

// FindActive returns the active override for a scope and item code
func (r *OverrideRepository) FindActive(ctx context.Context, scope pricing.Scope, itemCode string) (*pricing.Override, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+overrideColumns+` FROM pricing_overrides
		 WHERE tenant_id = ? AND subject_id = ? AND item_code = ? AND active = 1`,
		scope.TenantID, scope.SubjectID, itemCode)
	o, err := scanOverride(row)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active override: %w", err)
	}
	return o, nil
}

// Get retrieves an override by ID
func (r *OverrideRepository) Get(ctx context.Context, tenantID, id string) (*pricing.Override, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+overrideColumns+` FROM pricing_overrides WHERE id = ? AND tenant_id = ?`, id, tenantID)
	o, err := scanOverride(row)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get override: %w", err)
	}
	return o, nil
}

// Create inserts a new override together with its first history entry. A
// second active override for the same scope and item is rejected by the
// partial unique index.
func (r *OverrideRepository) Create(ctx context.Context, o *pricing.Override, entry pricing.HistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	amount, factor, basedOn := modeColumns(o.Mode)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO pricing_overrides (`+overrideColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.ID,
		o.Scope.TenantID,
		o.Scope.SubjectID,
		o.ItemCode,
		o.Mode.Kind(),
		amount,
		factor,
		basedOn,
		o.EffectiveFrom,
		nullTime(o.EffectiveTo),
		o.Approval,
		boolInt(o.Active),
		o.Version,
		o.CreatedBy,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		if isCheckViolation(err) {
			return repository.ErrInvalidInput
		}
		return fmt.Errorf("failed to create override: %w", err)
	}
	if err := appendHistory(ctx, tx, o.ID, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// Update writes o and appends entry if the stored version still equals
// expectedVersion. Neither is written when either fails.
func (r *OverrideRepository) Update(ctx context.Context, o *pricing.Override, expectedVersion int64, entry pricing.HistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	amount, factor, basedOn := modeColumns(o.Mode)
	result, err := tx.ExecContext(ctx, `
		UPDATE pricing_overrides
		SET mode = ?, amount = ?, factor = ?, based_on_tier = ?,
		    effective_from = ?, effective_to = ?, approval = ?, active = ?,
		    version = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ? AND version = ?
	`,
		o.Mode.Kind(),
		amount,
		factor,
		basedOn,
		o.EffectiveFrom,
		nullTime(o.EffectiveTo),
		o.Approval,
		boolInt(o.Active),
		o.Version,
		o.UpdatedAt,
		o.ID,
		o.Scope.TenantID,
		expectedVersion,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to update override: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM pricing_overrides WHERE id = ? AND tenant_id = ?`, o.ID, o.Scope.TenantID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check override: %w", err)
		}
		if exists == 0 {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	if err := appendHistory(ctx, tx, o.ID, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// appendHistory adds an immutable history row inside tx
func appendHistory(ctx context.Context, tx *sql.Tx, overrideID string, entry pricing.HistoryEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO override_history (override_id, version, action, old_price, new_price, actor, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		overrideID,
		entry.Version,
		entry.Action,
		nullDecimal(entry.OldPrice),
		nullDecimal(entry.NewPrice),
		entry.Actor,
		entry.Reason,
		createdAt,
	)
	if err != nil {
		switch {
		case isForeignKeyViolation(err):
			return repository.ErrForeignKeyViolation
		case isCheckViolation(err):
			return repository.ErrInvalidInput
		}
		return fmt.Errorf("failed to append override history: %w", err)
	}
	return nil
}

// History returns an override's history, oldest first
func (r *OverrideRepository) History(ctx context.Context, overrideID string) ([]pricing.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT version, action, old_price, new_price, actor, reason, created_at
		FROM override_history
		WHERE override_id = ?
		ORDER BY id
	`, overrideID)
	if err != nil {
		return nil, fmt.Errorf("failed to load override history: %w", err)
	}
	defer rows.Close()

	entries := []pricing.HistoryEntry{}
	for rows.Next() {
		var e pricing.HistoryEntry
		var oldPrice, newPrice decimal.NullDecimal
		if err := rows.Scan(&e.Version, &e.Action, &oldPrice, &newPrice, &e.Actor, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.OldPrice = decimalPtr(oldPrice)
		e.NewPrice = decimalPtr(newPrice)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}
	return entries, nil
}

// List returns overrides matching the given filters
func (r *OverrideRepository) List(ctx context.Context, tenantID string, opts pricing.ListOverridesOptions) ([]pricing.Override, error) {
	query := `SELECT ` + overrideColumns + ` FROM pricing_overrides WHERE tenant_id = ?`
	args := []interface{}{tenantID}
	conditions := []string{}

	if opts.SubjectID != nil {
		conditions = append(conditions, "subject_id = ?")
		args = append(args, *opts.SubjectID)
	}
	if opts.ItemCode != "" {
		conditions = append(conditions, "item_code = ?")
		args = append(args, opts.ItemCode)
	}
	if opts.Approval != nil {
		conditions = append(conditions, "approval = ?")
		args = append(args, *opts.Approval)
	}
	if opts.ActiveOnly {
		conditions = append(conditions, "active = 1")
	}
	if len(conditions) > 0 {
		query += " AND " + joinConditions(conditions)
	}

	query += " ORDER BY item_code, subject_id, created_at DESC"
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
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	defer rows.Close()

	overrides := []pricing.Override{}
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		overrides = append(overrides, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating override rows: %w", err)
	}
	return overrides, nil
}
