package schedules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/seminar-portal/internal/models"
	"github.com/aura-webinar/seminar-portal/pkg/storage"
)

const scheduleColumns = `id, title, COALESCE(speaker,''), COALESCE(description,''), slug, scheduled_start, scheduled_end,
	auto_end_hours, actual_start, actual_end, status, is_test_live, meeting_number, meeting_password,
	waiting_image_url, ended_image_url, created_at, updated_at`

// Repository handles schedule persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a schedule repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanSchedule(row pgx.Row) (*models.Schedule, error) {
	var s models.Schedule
	err := row.Scan(&s.ID, &s.Title, &s.Speaker, &s.Description, &s.Slug, &s.ScheduledStart, &s.ScheduledEnd,
		&s.AutoEndHours, &s.ActualStart, &s.ActualEnd, &s.Status, &s.IsTestLive, &s.MeetingNumber, &s.MeetingPassword,
		&s.WaitingImageURL, &s.EndedImageURL, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSchedules(rows pgx.Rows) ([]models.Schedule, error) {
	defer rows.Close()
	list := []models.Schedule{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// Create inserts a new schedule. Slug and status must already be set.
func (r *Repository) Create(ctx context.Context, s *models.Schedule) error {
	const q = `INSERT INTO schedules (title, speaker, description, slug, scheduled_start, scheduled_end, auto_end_hours, status)
		VALUES ($1, NULLIF($2,''), NULLIF($3,''), $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, s.Title, s.Speaker, s.Description, s.Slug, s.ScheduledStart, s.ScheduledEnd, s.AutoEndHours, s.Status).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// GetByID returns a schedule by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Schedule, error) {
	s, err := scanSchedule(r.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return s, err
}

// GetBySlug returns a schedule by its routable slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Schedule, error) {
	s, err := scanSchedule(r.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE slug = $1`, slug))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("get schedule by slug: %w", err)
	}
	return s, err
}

// List returns all schedules, newest scheduled_start first.
func (r *Repository) List(ctx context.Context) ([]models.Schedule, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+scheduleColumns+` FROM schedules ORDER BY scheduled_start DESC`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return collectSchedules(rows)
}

// ListOverdueLive returns live schedules whose actual_start + auto_end_hours is at or before now.
func (r *Repository) ListOverdueLive(ctx context.Context, now time.Time) ([]models.Schedule, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+scheduleColumns+` FROM schedules
		WHERE status = 'live' AND actual_start IS NOT NULL
		AND actual_start + make_interval(hours => auto_end_hours) <= $1
		ORDER BY actual_start`, now)
	if err != nil {
		return nil, fmt.Errorf("list overdue schedules: %w", err)
	}
	return collectSchedules(rows)
}

// LatestOpenSlug returns the slug of the earliest upcoming or live schedule.
func (r *Repository) LatestOpenSlug(ctx context.Context) (string, error) {
	var slug string
	err := r.pool.QueryRow(ctx, `SELECT slug FROM schedules WHERE status IN ('upcoming', 'live')
		ORDER BY scheduled_start ASC LIMIT 1`).Scan(&slug)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("latest open schedule: %w", err)
	}
	return slug, nil
}

// UpdateInfo replaces the display and timing fields of a schedule.
func (r *Repository) UpdateInfo(ctx context.Context, id uuid.UUID, in InfoInput) (*models.Schedule, error) {
	const q = `UPDATE schedules SET title = $2, speaker = NULLIF($3,''), description = NULLIF($4,''),
		scheduled_start = $5, scheduled_end = $6, auto_end_hours = $7, updated_at = NOW()
		WHERE id = $1 RETURNING ` + scheduleColumns
	s, err := scanSchedule(r.pool.QueryRow(ctx, q, id, in.Title, in.Speaker, in.Description, in.ScheduledStart, in.ScheduledEnd, in.AutoEndHours))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	return s, err
}

// UpdateMeeting sets or clears the meeting room identifier and secret.
func (r *Repository) UpdateMeeting(ctx context.Context, id uuid.UUID, number, password *string) (*models.Schedule, error) {
	const q = `UPDATE schedules SET meeting_number = NULLIF($2,''), meeting_password = NULLIF($3,''), updated_at = NOW()
		WHERE id = $1 RETURNING ` + scheduleColumns
	s, err := scanSchedule(r.pool.QueryRow(ctx, q, id, number, password))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("update meeting: %w", err)
	}
	return s, err
}

// UpdateImage stores the URL of the waiting or ended screen image.
func (r *Repository) UpdateImage(ctx context.Context, id uuid.UUID, kind storage.ImageKind, url string) (*models.Schedule, error) {
	column := "waiting_image_url"
	if kind == storage.ImageEnded {
		column = "ended_image_url"
	}
	q := `UPDATE schedules SET ` + column + ` = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + scheduleColumns
	s, err := scanSchedule(r.pool.QueryRow(ctx, q, id, url))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("update image: %w", err)
	}
	return s, err
}

// UpdateStatus moves a schedule from status `from` to `to` and writes both actual_* columns.
// It returns ErrConflict when the stored status is no longer `from`.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.ScheduleStatus, actualStart, actualEnd *time.Time) (*models.Schedule, error) {
	const q = `UPDATE schedules SET status = $3, actual_start = $4, actual_end = $5, updated_at = NOW()
		WHERE id = $1 AND status = $2 RETURNING ` + scheduleColumns
	s, err := scanSchedule(r.pool.QueryRow(ctx, q, id, from, to, actualStart, actualEnd))
	if errors.Is(err, models.ErrNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: status changed concurrently", models.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	return s, nil
}

// SetTestLive writes the is_test_live flag only.
func (r *Repository) SetTestLive(ctx context.Context, id uuid.UUID, enabled bool) (*models.Schedule, error) {
	const q = `UPDATE schedules SET is_test_live = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + scheduleColumns
	s, err := scanSchedule(r.pool.QueryRow(ctx, q, id, enabled))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("set test live: %w", err)
	}
	return s, err
}

// Purge deletes a schedule after its dependent rows. Each delete is independent;
// an interruption leaves the remaining rows for a later retry.
func (r *Repository) Purge(ctx context.Context, id uuid.UUID) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	for _, table := range []string{"chat_messages", "viewer_sessions", "viewer_access_logs"} {
		if _, err := r.pool.Exec(ctx, `DELETE FROM `+table+` WHERE schedule_id = $1`, id); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

// Dashboard returns the headline counts for the admin console.
func (r *Repository) Dashboard(ctx context.Context) (*Dashboard, error) {
	const q = `SELECT
		(SELECT COUNT(*) FROM schedules),
		(SELECT COUNT(*) FROM schedules WHERE status = 'upcoming'),
		(SELECT COUNT(*) FROM schedules WHERE status = 'live'),
		(SELECT COUNT(*) FROM schedules WHERE status = 'ended'),
		(SELECT COUNT(*) FROM customers),
		(SELECT COUNT(*) FROM customers WHERE is_active),
		(SELECT COUNT(*) FROM viewer_sessions WHERE is_active)`
	var d Dashboard
	err := r.pool.QueryRow(ctx, q).Scan(&d.Schedules, &d.Upcoming, &d.Live, &d.Ended, &d.Customers, &d.ActiveCustomers, &d.ActiveSessions)
	if err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}
	return &d, nil
}
