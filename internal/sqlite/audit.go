package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rpggio/supportbill/internal/domain/audit"
)

// AuditRepository implements audit.Repository for SQLite
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record appends an audit event
func (r *AuditRepository) Record(ctx context.Context, event *audit.Event) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	oldValues, err := encodeValues(event.OldValues)
	if err != nil {
		return err
	}
	newValues, err := encodeValues(event.NewValues)
	if err != nil {
		return err
	}
	metadata, err := encodeValues(event.Metadata)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (
			tenant_id, action, entity_type, entity_id, actor,
			old_values, new_values, reason, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.TenantID,
		event.Action,
		event.EntityType,
		event.EntityID,
		event.Actor,
		oldValues,
		newValues,
		event.Reason,
		metadata,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		event.ID = id
	}
	event.CreatedAt = createdAt
	return nil
}

// List returns audit events matching the given filters, newest first
func (r *AuditRepository) List(ctx context.Context, tenantID string, opts audit.ListOptions) ([]audit.Event, error) {
	query := `
		SELECT
			id, tenant_id, action, entity_type, entity_id, actor,
			old_values, new_values, reason, metadata, created_at
		FROM audit_log
		WHERE tenant_id = ?
	`
	args := []interface{}{tenantID}
	conditions := []string{}

	if opts.EntityType != "" {
		conditions = append(conditions, "entity_type = ?")
		args = append(args, opts.EntityType)
	}
	if opts.EntityID != "" {
		conditions = append(conditions, "entity_id = ?")
		args = append(args, opts.EntityID)
	}
	if opts.Action != nil {
		conditions = append(conditions, "action = ?")
		args = append(args, *opts.Action)
	}
	if len(conditions) > 0 {
		query += " AND " + joinConditions(conditions)
	}

	query += " ORDER BY id DESC"
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
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	events := []audit.Event{}
	for rows.Next() {
		var e audit.Event
		var oldValues, newValues, metadata sql.NullString
		if err := rows.Scan(
			&e.ID,
			&e.TenantID,
			&e.Action,
			&e.EntityType,
			&e.EntityID,
			&e.Actor,
			&oldValues,
			&newValues,
			&e.Reason,
			&metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if e.OldValues, err = decodeValues(oldValues); err != nil {
			return nil, err
		}
		if e.NewValues, err = decodeValues(newValues); err != nil {
			return nil, err
		}
		if e.Metadata, err = decodeValues(metadata); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}
	return events, nil
}

func encodeValues(values map[string]any) (sql.NullString, error) {
	if len(values) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode audit values: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeValues(s sql.NullString) (map[string]any, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var values map[string]any
	if err := json.Unmarshal([]byte(s.String), &values); err != nil {
		return nil, fmt.Errorf("failed to decode audit values: %w", err)
	}
	return values, nil
}
