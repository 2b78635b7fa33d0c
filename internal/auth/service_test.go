package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/seminar-portal/internal/models"
	"github.com/aura-webinar/seminar-portal/pkg/utils"
)

type stubAdmins struct {
	byEmail map[string]*models.Admin
}

func (s *stubAdmins) GetAdminByEmail(_ context.Context, email string) (*models.Admin, error) {
	if a, ok := s.byEmail[email]; ok {
		return a, nil
	}
	return nil, models.ErrNotFound
}

func (s *stubAdmins) UpsertAdmin(_ context.Context, email, hash, name string) (*models.Admin, error) {
	a := &models.Admin{ID: uuid.New(), Email: email, PasswordHash: hash, Name: name}
	s.byEmail[email] = a
	return a, nil
}

type stubCustomers map[string]*models.Customer

func (s stubCustomers) GetByCustomerID(_ context.Context, id string) (*models.Customer, error) {
	if c, ok := s[id]; ok {
		return c, nil
	}
	return nil, models.ErrNotFound
}

type stubSchedules struct {
	slug string
	err  error
}

func (s stubSchedules) LatestOpenSlug(context.Context) (string, error) { return s.slug, s.err }

func newTestService(schedules ScheduleLookup) (*Service, *stubAdmins) {
	admins := &stubAdmins{byEmail: map[string]*models.Admin{}}
	customers := stubCustomers{
		"AB12CD": {CustomerID: "AB12CD", Name: "Taro", IsActive: true},
		"ZZ99ZZ": {CustomerID: "ZZ99ZZ", Name: "Off", IsActive: false},
	}
	return NewService(admins, customers, schedules, NewJWTService("test-secret", 1), nil), admins
}

func TestLoginCustomer(t *testing.T) {
	svc, _ := newTestService(stubSchedules{slug: "abcd1234-xyz"})
	ctx := context.Background()

	res, err := svc.LoginCustomer(ctx, "  AB12CD ")
	require.NoError(t, err)
	assert.Equal(t, models.Viewer{Kind: models.KindCustomer, ID: "AB12CD", Name: "Taro"}, res.Viewer)
	assert.Equal(t, "abcd1234-xyz", res.LatestSlug)

	claims, err := svc.jwt.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Viewer, claims.Viewer())

	_, err = svc.LoginCustomer(ctx, "NOPE00")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.LoginCustomer(ctx, "ZZ99ZZ")
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = svc.LoginCustomer(ctx, "   ")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestLoginCustomerWithoutOpenSchedule(t *testing.T) {
	svc, _ := newTestService(stubSchedules{err: models.ErrNotFound})
	res, err := svc.LoginCustomer(context.Background(), "AB12CD")
	require.NoError(t, err)
	assert.Empty(t, res.LatestSlug)

	svc, _ = newTestService(stubSchedules{err: errors.New("db down")})
	_, err = svc.LoginCustomer(context.Background(), "AB12CD")
	assert.NoError(t, err)
}

func TestEnsureAdminThenLogin(t *testing.T) {
	svc, admins := newTestService(stubSchedules{})
	ctx := context.Background()
	require.NoError(t, svc.EnsureAdmin(ctx, "ops@example.com", "s3cret-pass", "Ops"))
	require.True(t, utils.CheckPassword("s3cret-pass", admins.byEmail["ops@example.com"].PasswordHash))

	res, err := svc.LoginAdmin(ctx, "ops@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, res.Viewer.IsAdmin())

	_, err = svc.LoginAdmin(ctx, "ops@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.LoginAdmin(ctx, "nobody@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestJWTRejectsExpiredAndForeign(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	j := NewJWTService("secret-a", 1)
	j.now = func() time.Time { return issued }
	token, err := j.Generate(models.Viewer{Kind: models.KindCustomer, ID: "AB12CD"})
	require.NoError(t, err)

	_, err = j.Validate(token)
	require.NoError(t, err)

	j.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = j.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewJWTService("secret-b", 1)
	other.now = func() time.Time { return issued }
	_, err = other.ResolveViewer(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
