package schedules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aura-webinar/seminar-portal/internal/models"
	"github.com/aura-webinar/seminar-portal/pkg/storage"
	"github.com/aura-webinar/seminar-portal/pkg/utils"
)

// Store is the schedule persistence the package depends on. *Repository implements it.
type Store interface {
	Create(ctx context.Context, s *models.Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Schedule, error)
	GetBySlug(ctx context.Context, slug string) (*models.Schedule, error)
	List(ctx context.Context) ([]models.Schedule, error)
	UpdateInfo(ctx context.Context, id uuid.UUID, in InfoInput) (*models.Schedule, error)
	UpdateMeeting(ctx context.Context, id uuid.UUID, number, password *string) (*models.Schedule, error)
	UpdateImage(ctx context.Context, id uuid.UUID, kind storage.ImageKind, url string) (*models.Schedule, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.ScheduleStatus, actualStart, actualEnd *time.Time) (*models.Schedule, error)
	SetTestLive(ctx context.Context, id uuid.UUID, enabled bool) (*models.Schedule, error)
	Purge(ctx context.Context, id uuid.UUID) error
	Dashboard(ctx context.Context) (*Dashboard, error)
}

// InfoInput holds the editable display and timing fields of a schedule.
type InfoInput struct {
	Title          string     `json:"title"`
	Speaker        string     `json:"speaker"`
	Description    string     `json:"description"`
	ScheduledStart time.Time  `json:"scheduled_start"`
	ScheduledEnd   *time.Time `json:"scheduled_end"`
	AutoEndHours   int        `json:"auto_end_hours"`
}

// Normalize trims text fields, applies the default auto-end and validates the result.
func (in *InfoInput) Normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Speaker = strings.TrimSpace(in.Speaker)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", models.ErrValidation)
	}
	if in.ScheduledStart.IsZero() {
		return fmt.Errorf("%w: scheduled_start is required", models.ErrValidation)
	}
	if in.ScheduledEnd != nil && in.ScheduledEnd.Before(in.ScheduledStart) {
		return fmt.Errorf("%w: scheduled_end is before scheduled_start", models.ErrValidation)
	}
	if in.AutoEndHours == 0 {
		in.AutoEndHours = models.DefaultAutoEndHours
	}
	if in.AutoEndHours < models.MinAutoEndHours || in.AutoEndHours > models.MaxAutoEndHours {
		return fmt.Errorf("%w: auto_end_hours must be between %d and %d", models.ErrValidation, models.MinAutoEndHours, models.MaxAutoEndHours)
	}
	return nil
}

// NewSchedule builds an upcoming schedule with a fresh slug from validated input.
func NewSchedule(in InfoInput, now time.Time) *models.Schedule {
	return &models.Schedule{
		Title:          in.Title,
		Speaker:        in.Speaker,
		Description:    in.Description,
		Slug:           utils.NewSlug(now),
		ScheduledStart: in.ScheduledStart,
		ScheduledEnd:   in.ScheduledEnd,
		AutoEndHours:   in.AutoEndHours,
		Status:         models.StatusUpcoming,
	}
}

// Dashboard is the admin console summary.
type Dashboard struct {
	Schedules       int64 `json:"schedules"`
	Upcoming        int64 `json:"upcoming"`
	Live            int64 `json:"live"`
	Ended           int64 `json:"ended"`
	Customers       int64 `json:"customers"`
	ActiveCustomers int64 `json:"active_customers"`
	ActiveSessions  int64 `json:"active_sessions"`
}
