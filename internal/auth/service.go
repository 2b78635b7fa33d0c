package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aura-webinar/seminar-portal/internal/models"
	"github.com/aura-webinar/seminar-portal/pkg/utils"
)

// ErrInvalidCredentials is returned for an unknown admin email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// AdminStore is the admin account persistence used by the service.
type AdminStore interface {
	GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error)
	UpsertAdmin(ctx context.Context, email, passwordHash, name string) (*models.Admin, error)
}

// CustomerLookup resolves a login id to a registered customer.
type CustomerLookup interface {
	GetByCustomerID(ctx context.Context, customerID string) (*models.Customer, error)
}

// ScheduleLookup finds the schedule a freshly logged-in viewer should land on.
type ScheduleLookup interface {
	LatestOpenSlug(ctx context.Context) (string, error)
}

// LoginResult is returned by both login flows.
type LoginResult struct {
	Token      string        `json:"token"`
	Viewer     models.Viewer `json:"viewer"`
	LatestSlug string        `json:"latest_slug,omitempty"`
}

// Service resolves credentials into viewer identities and tokens.
type Service struct {
	admins    AdminStore
	customers CustomerLookup
	schedules ScheduleLookup
	jwt       *JWTService
	logger    *zap.Logger
}

// NewService creates an auth service.
func NewService(admins AdminStore, customers CustomerLookup, schedules ScheduleLookup, jwt *JWTService, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{admins: admins, customers: customers, schedules: schedules, jwt: jwt, logger: logger}
}

// LoginCustomer resolves a customer id. Unknown ids are ErrNotFound, inactive ones ErrForbidden.
func (s *Service) LoginCustomer(ctx context.Context, customerID string) (*LoginResult, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer_id is required", models.ErrValidation)
	}
	cust, err := s.customers.GetByCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !cust.IsActive {
		return nil, fmt.Errorf("%w: account is disabled", models.ErrForbidden)
	}
	v := models.Viewer{Kind: models.KindCustomer, ID: cust.CustomerID, Name: cust.Name}
	token, err := s.jwt.Generate(v)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	res := &LoginResult{Token: token, Viewer: v}
	slug, err := s.schedules.LatestOpenSlug(ctx)
	switch {
	case err == nil:
		res.LatestSlug = slug
	case errors.Is(err, models.ErrNotFound):
	default:
		s.logger.Warn("latest schedule lookup failed", zap.Error(err))
	}
	return res, nil
}

// LoginAdmin checks an admin email/password pair.
func (s *Service) LoginAdmin(ctx context.Context, email, password string) (*LoginResult, error) {
	admin, err := s.admins.GetAdminByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(password, admin.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	v := models.Viewer{Kind: models.KindAdmin, ID: admin.ID.String(), Name: admin.Name}
	token, err := s.jwt.Generate(v)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &LoginResult{Token: token, Viewer: v}, nil
}

// EnsureAdmin upserts the configured admin account at startup.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, name string) error {
	if email == "" || password == "" {
		s.logger.Warn("ADMIN_EMAIL/ADMIN_PASSWORD not set; admin login disabled until an admin row exists")
		return nil
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if _, err := s.admins.UpsertAdmin(ctx, email, hash, name); err != nil {
		return err
	}
	s.logger.Info("admin account ensured", zap.String("email", email))
	return nil
}
