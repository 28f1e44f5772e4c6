package repository

import (
	"context"
	"time"

	"github.com/cartloop/recurbill/internal/domain/customer"
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/logger"
	"github.com/cartloop/recurbill/internal/postgres"
	"github.com/jackc/pgx/v5"
)

type customerRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewCustomerRepository(db postgres.IClient, log *logger.Logger) customer.Repository {
	return &customerRepository{db: db, logger: log}
}

const customerColumns = `
	id, name, email, status, created_at, updated_at, created_by, updated_by`

func (r *customerRepository) Create(ctx context.Context, c *customer.Customer) error {
	_, err := r.db.Querier(ctx).Exec(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Name, c.Email,
		c.BaseModel.Status, c.CreatedAt, c.UpdatedAt, c.CreatedBy, c.UpdatedBy,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create customer").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *customerRepository) Get(ctx context.Context, id string) (*customer.Customer, error) {
	var c customer.Customer
	err := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT `+customerColumns+`
		FROM customers WHERE id = $1`, id).Scan(
		&c.ID, &c.Name, &c.Email,
		&c.BaseModel.Status, &c.CreatedAt, &c.UpdatedAt, &c.CreatedBy, &c.UpdatedBy,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ierr.NewError("customer not found").
				WithHint("Customer not found").
				WithReportableDetails(map[string]any{
					"customer_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to read customer").
			Mark(ierr.ErrDatabase)
	}
	return &c, nil
}

func (r *customerRepository) Update(ctx context.Context, c *customer.Customer) error {
	c.UpdatedAt = time.Now().UTC()
	tag, err := r.db.Querier(ctx).Exec(ctx, `
		UPDATE customers
		SET name = $2, email = $3, status = $4, updated_at = $5, updated_by = $6
		WHERE id = $1`,
		c.ID, c.Name, c.Email, c.BaseModel.Status, c.UpdatedAt, c.UpdatedBy,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update customer").
			Mark(ierr.ErrDatabase)
	}
	if tag.RowsAffected() == 0 {
		return ierr.NewError("customer not found").
			WithHint("Customer not found").
			Mark(ierr.ErrNotFound)
	}
	return nil
}
