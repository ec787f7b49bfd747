package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rpggio/supportbill/internal/domain/extract"
	"github.com/rpggio/supportbill/internal/repository"
)

// ExpenseRepository reads the expense feed
type ExpenseRepository struct {
	db *DB
}

// NewExpenseRepository creates a new ExpenseRepository
func NewExpenseRepository(db *DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

// ExpenseStatus is the approval state of an expense in the feed.
type ExpenseStatus string

const (
	ExpensePending  ExpenseStatus = "pending"
	ExpenseApproved ExpenseStatus = "approved"
	ExpenseRejected ExpenseStatus = "rejected"
)

// ListApprovedReimbursable returns a subject's approved, reimbursable expenses
// dated between start and end inclusive
func (r *ExpenseRepository) ListApprovedReimbursable(ctx context.Context, tenantID, subjectID string, start, end time.Time) ([]extract.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, subject_id, date, category, description, amount, item_code
		FROM expenses
		WHERE tenant_id = ? AND subject_id = ? AND status = 'approved' AND reimbursable = 1
		  AND date BETWEEN ? AND ?
		ORDER BY date, id
	`, tenantID, subjectID, formatDate(start), formatDate(end))
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []extract.Expense
	for rows.Next() {
		var e extract.Expense
		var date string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.SubjectID, &date, &e.Category, &e.Description, &e.Amount, &e.ItemCode); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		if e.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expenses: %w", err)
	}
	return expenses, nil
}

// Add inserts an expense into the feed
func (r *ExpenseRepository) Add(ctx context.Context, e *extract.Expense, status ExpenseStatus, reimbursable bool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, tenant_id, subject_id, date, category, description, amount, item_code, status, reimbursable)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.TenantID, e.SubjectID, formatDate(e.Date), e.Category, e.Description, e.Amount.String(), e.ItemCode, status, boolInt(reimbursable))
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return repository.ErrAlreadyExists
		case isCheckViolation(err):
			return repository.ErrInvalidInput
		}
		return fmt.Errorf("failed to add expense: %w", err)
	}
	return nil
}
