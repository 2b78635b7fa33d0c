package chat

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

const messageColumns = `id, schedule_id, customer_id, display_name, content, status, created_at, approved_at, approved_by`

// Repository handles chat message persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a chat repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanMessage(row pgx.Row) (*models.ChatMessage, error) {
	var m models.ChatMessage
	err := row.Scan(&m.ID, &m.ScheduleID, &m.CustomerID, &m.DisplayName, &m.Content, &m.Status, &m.CreatedAt, &m.ApprovedAt, &m.ApprovedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func collectMessages(rows pgx.Rows) ([]models.ChatMessage, error) {
	defer rows.Close()
	list := []models.ChatMessage{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

// Create inserts a new message; the status is whatever m carries (pending for submissions).
func (r *Repository) Create(ctx context.Context, m *models.ChatMessage) error {
	const q = `INSERT INTO chat_messages (schedule_id, customer_id, display_name, content, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, q, m.ScheduleID, m.CustomerID, m.DisplayName, m.Content, m.Status).Scan(&m.ID, &m.CreatedAt); err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// GetByID returns a message by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.ChatMessage, error) {
	m, err := scanMessage(r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM chat_messages WHERE id = $1`, id))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("get chat message: %w", err)
	}
	return m, err
}

// UpdateStatus moves a message to `to` only while its status is one of `from`.
// approved_at/approved_by are written only when non-nil. Returns ErrConflict when
// the message has already left the `from` set.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from []models.ChatStatus, to models.ChatStatus, approvedAt *time.Time, approvedBy *string) (*models.ChatMessage, error) {
	const q = `UPDATE chat_messages SET status = $2,
		approved_at = COALESCE($3, approved_at), approved_by = COALESCE($4, approved_by)
		WHERE id = $1 AND status = ANY($5) RETURNING ` + messageColumns
	sources := make([]string, len(from))
	for i, s := range from {
		sources[i] = string(s)
	}
	m, err := scanMessage(r.pool.QueryRow(ctx, q, id, to, approvedAt, approvedBy, sources))
	if errors.Is(err, models.ErrNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: message status changed concurrently", models.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("update chat status: %w", err)
	}
	return m, nil
}

// ListApproved returns the most recent `limit` approved messages in ascending time order.
func (r *Repository) ListApproved(ctx context.Context, scheduleID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	q := `SELECT ` + messageColumns + ` FROM (
		SELECT ` + messageColumns + ` FROM chat_messages
		WHERE schedule_id = $1 AND status = 'approved'
		ORDER BY created_at DESC LIMIT $2
	) recent ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, q, scheduleID, limit)
	if err != nil {
		return nil, fmt.Errorf("list approved messages: %w", err)
	}
	return collectMessages(rows)
}

// ListForModeration returns the most recent `limit` messages, newest first, optionally by status.
func (r *Repository) ListForModeration(ctx context.Context, scheduleID uuid.UUID, status *models.ChatStatus, limit int) ([]models.ChatMessage, error) {
	q := `SELECT ` + messageColumns + ` FROM chat_messages
		WHERE schedule_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC LIMIT $3`
	var filter *string
	if status != nil {
		s := string(*status)
		filter = &s
	}
	rows, err := r.pool.Query(ctx, q, scheduleID, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages for moderation: %w", err)
	}
	return collectMessages(rows)
}
