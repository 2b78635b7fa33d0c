package chat

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-webinar/seminar-portal/internal/models"
	"github.com/aura-webinar/seminar-portal/pkg/database"
)

// testPool connects to TEST_DATABASE_URL and applies the migrations.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, dsn, 2, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool, zap.NewNop()))
	return pool
}

func insertSchedule(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	slug := "chat" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	err := pool.QueryRow(context.Background(),
		`INSERT INTO schedules (title, slug, scheduled_start, status) VALUES ($1, $2, $3, 'live') RETURNING id`,
		"Repository test", slug, time.Now().UTC()).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestRepositoryCreateThenGetPreservesFields(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	name := strings.Repeat("山", 30)
	in := &models.ChatMessage{
		ScheduleID:  insertSchedule(t, pool),
		CustomerID:  "TARO01",
		DisplayName: name,
		Content:     "こんにちは 👋🏽 naïve\n二行目",
		Status:      models.ChatPending,
	}
	require.NoError(t, repo.Create(ctx, in))
	require.NotEqual(t, uuid.Nil, in.ID)

	got, err := repo.GetByID(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.Content, got.Content)
	assert.Equal(t, name, got.DisplayName)
	assert.Equal(t, models.ChatPending, got.Status)
	assert.Equal(t, in.ScheduleID, got.ScheduleID)
	assert.Equal(t, in.CustomerID, got.CustomerID)
	assert.Nil(t, got.ApprovedAt)
	assert.Nil(t, got.ApprovedBy)

	at := time.Now().UTC().Truncate(time.Microsecond)
	by := "admin@example.com"
	approved, err := repo.UpdateStatus(ctx, in.ID, []models.ChatStatus{models.ChatPending}, models.ChatApproved, &at, &by)
	require.NoError(t, err)
	assert.Equal(t, in.Content, approved.Content)
	assert.Equal(t, models.ChatApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)
	assert.True(t, at.Equal(*approved.ApprovedAt))

	_, err = repo.UpdateStatus(ctx, in.ID, []models.ChatStatus{models.ChatPending}, models.ChatRejected, nil, nil)
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}
