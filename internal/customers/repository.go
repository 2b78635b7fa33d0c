package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/seminar-portal/internal/models"
)

const customerColumns = `id, customer_id, name, COALESCE(phone,''), COALESCE(email,''), COALESCE(memo,''), is_active, created_at, updated_at`

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

// Repository handles customer persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a customer repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanCustomer(row pgx.Row) (*models.Customer, error) {
	var c models.Customer
	err := row.Scan(&c.ID, &c.CustomerID, &c.Name, &c.Phone, &c.Email, &c.Memo, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a customer. A taken customer_id yields ErrConflict.
func (r *Repository) Create(ctx context.Context, c *models.Customer) error {
	const q = `INSERT INTO customers (customer_id, name, phone, email, memo, is_active)
		VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), $6)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, c.CustomerID, c.Name, c.Phone, c.Email, c.Memo, c.IsActive).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: customer_id %s already exists", models.ErrConflict, c.CustomerID)
	}
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

// GetByID returns a customer by row ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, err
}

// GetByCustomerID returns a customer by login id.
func (r *Repository) GetByCustomerID(ctx context.Context, customerID string) (*models.Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE customer_id = $1`, customerID))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("get customer by customer_id: %w", err)
	}
	return c, err
}

// List returns customers, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()
	list := []models.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

// Update replaces the editable fields of a customer.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, in Input) (*models.Customer, error) {
	const q = `UPDATE customers SET name = $2, phone = NULLIF($3,''), email = NULLIF($4,''), memo = NULLIF($5,''), updated_at = NOW()
		WHERE id = $1 RETURNING ` + customerColumns
	c, err := scanCustomer(r.pool.QueryRow(ctx, q, id, in.Name, in.Phone, in.Email, in.Memo))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return c, err
}

// SetActive enables or disables login for a customer.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Customer, error) {
	const q = `UPDATE customers SET is_active = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + customerColumns
	c, err := scanCustomer(r.pool.QueryRow(ctx, q, id, active))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("set customer active: %w", err)
	}
	return c, err
}

// Delete removes a customer. History rows keep the customer_id text.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
