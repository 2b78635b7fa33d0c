package sessionlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/seminar-portal/internal/models"
)

// SessionRow is one row for GET /admin/schedules/:id/sessions.
type SessionRow struct {
	models.ViewerSession
	CustomerName string `json:"customer_name"`
}

// AccessRow is one row for GET /admin/schedules/:id/access-logs.
type AccessRow struct {
	models.ViewerAccessLog
	CustomerName string `json:"customer_name"`
}

// Repository handles viewer_sessions and viewer_access_logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a session log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateSession inserts an active session; ID and JoinedAt are filled from the row.
func (r *Repository) CreateSession(ctx context.Context, s *models.ViewerSession) error {
	const q = `INSERT INTO viewer_sessions (schedule_id, customer_id, joined_at, is_active)
		VALUES ($1, $2, $3, TRUE) RETURNING id, joined_at, is_active`
	if err := r.pool.QueryRow(ctx, q, s.ScheduleID, s.CustomerID, s.JoinedAt).Scan(&s.ID, &s.JoinedAt, &s.IsActive); err != nil {
		return fmt.Errorf("insert viewer session: %w", err)
	}
	return nil
}

// GetSession returns a session by ID.
func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*models.ViewerSession, error) {
	const q = `SELECT id, schedule_id, customer_id, joined_at, left_at, duration_seconds, is_active
		FROM viewer_sessions WHERE id = $1`
	var s models.ViewerSession
	err := r.pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.ScheduleID, &s.CustomerID, &s.JoinedAt, &s.LeftAt, &s.DurationSeconds, &s.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get viewer session: %w", err)
	}
	return &s, nil
}

// CloseSession writes left_at/duration_seconds and clears is_active. A later leave
// replaces an earlier one; left_at never moves backwards. It reports whether a row was changed.
func (r *Repository) CloseSession(ctx context.Context, s *models.ViewerSession) (bool, error) {
	const q = `UPDATE viewer_sessions SET left_at = $2, duration_seconds = $3, is_active = FALSE
		WHERE id = $1 AND (left_at IS NULL OR left_at < $2)`
	tag, err := r.pool.Exec(ctx, q, s.ID, s.LeftAt, s.DurationSeconds)
	if err != nil {
		return false, fmt.Errorf("close viewer session: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListSessions returns the sessions of a schedule, newest first, with customer names.
func (r *Repository) ListSessions(ctx context.Context, scheduleID uuid.UUID) ([]SessionRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.schedule_id, s.customer_id, s.joined_at, s.left_at, s.duration_seconds, s.is_active, COALESCE(c.name, '')
		 FROM viewer_sessions s LEFT JOIN customers c ON c.customer_id = s.customer_id
		 WHERE s.schedule_id = $1 ORDER BY s.joined_at DESC`,
		scheduleID)
	if err != nil {
		return nil, fmt.Errorf("list viewer sessions: %w", err)
	}
	defer rows.Close()
	list := []SessionRow{}
	for rows.Next() {
		var row SessionRow
		if err := rows.Scan(&row.ID, &row.ScheduleID, &row.CustomerID, &row.JoinedAt, &row.LeftAt, &row.DurationSeconds, &row.IsActive, &row.CustomerName); err != nil {
			return nil, err
		}
		list = append(list, row)
	}
	return list, rows.Err()
}

// RecordAccess inserts one access log row.
func (r *Repository) RecordAccess(ctx context.Context, scheduleID uuid.UUID, customerID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO viewer_access_logs (schedule_id, customer_id, accessed_at) VALUES ($1, $2, $3)`,
		scheduleID, customerID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert access log: %w", err)
	}
	return nil
}

// ListAccessLogs returns the access log of a schedule, newest first, with customer names.
func (r *Repository) ListAccessLogs(ctx context.Context, scheduleID uuid.UUID) ([]AccessRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT l.id, l.schedule_id, l.customer_id, l.accessed_at, COALESCE(c.name, '')
		 FROM viewer_access_logs l LEFT JOIN customers c ON c.customer_id = l.customer_id
		 WHERE l.schedule_id = $1 ORDER BY l.accessed_at DESC`,
		scheduleID)
	if err != nil {
		return nil, fmt.Errorf("list access logs: %w", err)
	}
	defer rows.Close()
	list := []AccessRow{}
	for rows.Next() {
		var row AccessRow
		if err := rows.Scan(&row.ID, &row.ScheduleID, &row.CustomerID, &row.AccessedAt, &row.CustomerName); err != nil {
			return nil, err
		}
		list = append(list, row)
	}
	return list, rows.Err()
}
