package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aura-webinar/seminar-portal/internal/models"
	"github.com/aura-webinar/seminar-portal/pkg/utils"
)

// maxIDAttempts bounds retries when a generated customer_id collides.
const maxIDAttempts = 5

// Store is the customer persistence. *Repository implements it.
type Store interface {
	Create(ctx context.Context, c *models.Customer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	List(ctx context.Context) ([]models.Customer, error)
	Update(ctx context.Context, id uuid.UUID, in Input) (*models.Customer, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Customer, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Input holds the editable customer fields.
type Input struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
	Memo  string `json:"memo"`
}

func (in *Input) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	in.Memo = strings.TrimSpace(in.Memo)
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", models.ErrValidation)
	}
	return nil
}

// Service manages the customer registry.
type Service struct {
	store Store
	newID func() string
}

// NewService creates a customer service.
func NewService(store Store) *Service {
	return &Service{store: store, newID: utils.NewCustomerID}
}

// Create registers an active customer under a freshly generated login id.
func (s *Service) Create(ctx context.Context, in Input) (*models.Customer, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var lastErr error
	for i := 0; i < maxIDAttempts; i++ {
		c := &models.Customer{
			CustomerID: s.newID(),
			Name:       in.Name,
			Phone:      in.Phone,
			Email:      in.Email,
			Memo:       in.Memo,
			IsActive:   true,
		}
		err := s.store.Create(ctx, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, models.ErrConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("allocate customer id: %w", lastErr)
}

// Update edits a customer.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*models.Customer, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	return s.store.Update(ctx, id, in)
}

// Toggle flips the active flag.
func (s *Service) Toggle(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.store.SetActive(ctx, id, !c.IsActive)
}

// List returns all customers.
func (s *Service) List(ctx context.Context) ([]models.Customer, error) { return s.store.List(ctx) }

// Delete removes a customer.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error { return s.store.Delete(ctx, id) }
