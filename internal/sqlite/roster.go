package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rpggio/supportbill/internal/domain/extract"
	"github.com/rpggio/supportbill/internal/repository"
)

// RosterRepository stores subjects, assignments, schedules and worked time
type RosterRepository struct {
	db *DB
}

// NewRosterRepository creates a new RosterRepository
func NewRosterRepository(db *DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// GetSubject retrieves a subject by ID
func (r *RosterRepository) GetSubject(ctx context.Context, tenantID, subjectID string) (*extract.Subject, error) {
	var s extract.Subject
	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, email, region FROM subjects WHERE id = ? AND tenant_id = ?`,
		subjectID, tenantID,
	).Scan(&s.ID, &s.TenantID, &s.Name, &s.Email, &s.Region)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}
	return &s, nil
}

// ListAssignments returns a subject's active assignments with schedules loaded
func (r *RosterRepository) ListAssignments(ctx context.Context, tenantID, subjectID string) ([]extract.Assignment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, subject_id, item_code, region, active
		FROM assignments
		WHERE tenant_id = ? AND subject_id = ? AND active = 1
		ORDER BY id
	`, tenantID, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	var assignments []extract.Assignment
	for rows.Next() {
		var a extract.Assignment
		if err := rows.Scan(&a.ID, &a.TenantID, &a.SubjectID, &a.ItemCode, &a.Region, &a.Active); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}
	rows.Close()

	for i := range assignments {
		schedule, err := r.schedule(ctx, assignments[i].ID)
		if err != nil {
			return nil, err
		}
		assignments[i].Schedule = schedule
	}
	return assignments, nil
}

func (r *RosterRepository) schedule(ctx context.Context, assignmentID string) ([]extract.ScheduleEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, assignment_id, date, start_time, end_time, break_minutes, high_intensity, item_code, notes
		FROM schedule_entries
		WHERE assignment_id = ?
		ORDER BY date, start_time
	`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	defer rows.Close()

	var entries []extract.ScheduleEntry
	for rows.Next() {
		var e extract.ScheduleEntry
		var date string
		if err := rows.Scan(&e.ID, &e.AssignmentID, &date, &e.Start, &e.End, &e.BreakMinutes, &e.HighIntensity, &e.ItemCode, &e.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan schedule entry: %w", err)
		}
		if e.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule entries: %w", err)
	}
	return entries, nil
}

// ListWorkedTime returns an assignment's worked time between start and end inclusive
func (r *RosterRepository) ListWorkedTime(ctx context.Context, tenantID, assignmentID string, start, end time.Time) ([]extract.WorkedTime, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, assignment_id, date, start_time, end_time, break_minutes, notes
		FROM worked_time
		WHERE tenant_id = ? AND assignment_id = ? AND date BETWEEN ? AND ?
		ORDER BY date, start_time
	`, tenantID, assignmentID, formatDate(start), formatDate(end))
	if err != nil {
		return nil, fmt.Errorf("failed to list worked time: %w", err)
	}
	defer rows.Close()

	var records []extract.WorkedTime
	for rows.Next() {
		var w extract.WorkedTime
		var date string
		if err := rows.Scan(&w.ID, &w.AssignmentID, &date, &w.Start, &w.End, &w.BreakMinutes, &w.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan worked time: %w", err)
		}
		if w.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		records = append(records, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating worked time: %w", err)
	}
	return records, nil
}

// UpsertSubject inserts or updates a subject
func (r *RosterRepository) UpsertSubject(ctx context.Context, s *extract.Subject) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subjects (id, tenant_id, name, email, region) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email, region = excluded.region
	`, s.ID, s.TenantID, s.Name, s.Email, s.Region)
	if err != nil {
		return fmt.Errorf("failed to upsert subject: %w", err)
	}
	return nil
}

// CreateAssignment inserts an assignment and its schedule
func (r *RosterRepository) CreateAssignment(ctx context.Context, a *extract.Assignment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO assignments (id, tenant_id, subject_id, item_code, region, active) VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.TenantID, a.SubjectID, a.ItemCode, a.Region, boolInt(a.Active))
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	for _, e := range a.Schedule {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO schedule_entries (
				id, assignment_id, date, start_time, end_time, break_minutes, high_intensity, item_code, notes
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.ID, a.ID, formatDate(e.Date), e.Start, e.End, e.BreakMinutes, boolInt(e.HighIntensity), e.ItemCode, e.Notes)
		if err != nil {
			return fmt.Errorf("failed to create schedule entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit assignment: %w", err)
	}
	return nil
}

// AddWorkedTime inserts a worked time record
func (r *RosterRepository) AddWorkedTime(ctx context.Context, tenantID string, w *extract.WorkedTime) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO worked_time (id, tenant_id, assignment_id, date, start_time, end_time, break_minutes, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, w.ID, tenantID, w.AssignmentID, formatDate(w.Date), w.Start, w.End, w.BreakMinutes, w.Notes)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to add worked time: %w", err)
	}
	return nil
}
