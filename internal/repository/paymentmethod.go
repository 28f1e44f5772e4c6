package repository

import (
	"context"
	"time"

	"github.com/cartloop/recurbill/internal/domain/paymentmethod"
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/logger"
	"github.com/cartloop/recurbill/internal/postgres"
	"github.com/jackc/pgx/v5"
)

type paymentMethodRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewPaymentMethodRepository(db postgres.IClient, log *logger.Logger) paymentmethod.Repository {
	return &paymentMethodRepository{db: db, logger: log}
}

const paymentMethodColumns = `
	id, customer_id, api_type, vault_id, token,
	brand, last_four, expiry_month, expiry_year, cardholder_name,
	address_line1, address_line2, city, state, postal_code, country_code,
	deleted, is_primary,
	status, created_at, updated_at, created_by, updated_by`

func (r *paymentMethodRepository) scanRow(row pgx.Row) (*paymentmethod.PaymentMethod, error) {
	var pm paymentmethod.PaymentMethod
	err := row.Scan(
		&pm.ID, &pm.CustomerID, &pm.APIType, &pm.VaultID, &pm.Token,
		&pm.Brand, &pm.LastFour, &pm.ExpiryMonth, &pm.ExpiryYear, &pm.CardholderName,
		&pm.AddressLine1, &pm.AddressLine2, &pm.City, &pm.State, &pm.PostalCode, &pm.CountryCode,
		&pm.Deleted, &pm.Primary,
		&pm.BaseModel.Status, &pm.CreatedAt, &pm.UpdatedAt, &pm.CreatedBy, &pm.UpdatedBy,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ierr.NewError("payment method not found").
				WithHint("Payment method not found").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to read payment method").
			Mark(ierr.ErrDatabase)
	}
	return &pm, nil
}

func (r *paymentMethodRepository) Create(ctx context.Context, pm *paymentmethod.PaymentMethod) error {
	_, err := r.db.Querier(ctx).Exec(ctx, `
		INSERT INTO payment_methods (`+paymentMethodColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		pm.ID, pm.CustomerID, pm.APIType, pm.VaultID, pm.Token,
		pm.Brand, pm.LastFour, pm.ExpiryMonth, pm.ExpiryYear, pm.CardholderName,
		pm.AddressLine1, pm.AddressLine2, pm.City, pm.State, pm.PostalCode, pm.CountryCode,
		pm.Deleted, pm.Primary,
		pm.BaseModel.Status, pm.CreatedAt, pm.UpdatedAt, pm.CreatedBy, pm.UpdatedBy,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create payment method").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *paymentMethodRepository) Get(ctx context.Context, id string) (*paymentmethod.PaymentMethod, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT `+paymentMethodColumns+`
		FROM payment_methods WHERE id = $1`, id)
	return r.scanRow(row)
}

func (r *paymentMethodRepository) Update(ctx context.Context, pm *paymentmethod.PaymentMethod) error {
	pm.UpdatedAt = time.Now().UTC()
	tag, err := r.db.Querier(ctx).Exec(ctx, `
		UPDATE payment_methods
		SET api_type = $2, vault_id = $3, token = $4,
			brand = $5, last_four = $6, expiry_month = $7, expiry_year = $8,
			cardholder_name = $9, address_line1 = $10, address_line2 = $11,
			city = $12, state = $13, postal_code = $14, country_code = $15,
			deleted = $16, is_primary = $17, status = $18,
			updated_at = $19, updated_by = $20
		WHERE id = $1`,
		pm.ID, pm.APIType, pm.VaultID, pm.Token,
		pm.Brand, pm.LastFour, pm.ExpiryMonth, pm.ExpiryYear,
		pm.CardholderName, pm.AddressLine1, pm.AddressLine2,
		pm.City, pm.State, pm.PostalCode, pm.CountryCode,
		pm.Deleted, pm.Primary, pm.BaseModel.Status,
		pm.UpdatedAt, pm.UpdatedBy,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update payment method").
			Mark(ierr.ErrDatabase)
	}
	if tag.RowsAffected() == 0 {
		return ierr.NewError("payment method not found").
			WithHint("Payment method not found").
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *paymentMethodRepository) ListByCustomer(ctx context.Context, customerID string) ([]*paymentmethod.PaymentMethod, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `
		SELECT `+paymentMethodColumns+`
		FROM payment_methods
		WHERE customer_id = $1 AND deleted = false
		ORDER BY is_primary DESC, created_at ASC`, customerID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list payment methods").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var pms []*paymentmethod.PaymentMethod
	for rows.Next() {
		pm, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		pms = append(pms, pm)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to iterate payment methods").
			Mark(ierr.ErrDatabase)
	}
	return pms, nil
}

func (r *paymentMethodRepository) GetPrimary(ctx context.Context, customerID string) (*paymentmethod.PaymentMethod, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT `+paymentMethodColumns+`
		FROM payment_methods
		WHERE customer_id = $1 AND deleted = false AND is_primary = true
		LIMIT 1`, customerID)
	return r.scanRow(row)
}

// SetPrimary clears every other primary flag and sets the new one in a single
// transaction, so the at-most-one-primary invariant holds even under
// concurrent writers.
func (r *paymentMethodRepository) SetPrimary(ctx context.Context, customerID, id string) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		_, err := r.db.Querier(ctx).Exec(ctx, `
			UPDATE payment_methods SET is_primary = false, updated_at = $2
			WHERE customer_id = $1 AND is_primary = true`, customerID, now)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to clear primary payment method").
				Mark(ierr.ErrDatabase)
		}

		tag, err := r.db.Querier(ctx).Exec(ctx, `
			UPDATE payment_methods SET is_primary = true, updated_at = $3
			WHERE id = $1 AND customer_id = $2 AND deleted = false`, id, customerID, now)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to set primary payment method").
				Mark(ierr.ErrDatabase)
		}
		if tag.RowsAffected() == 0 {
			return ierr.NewError("payment method not found").
				WithHint("Payment method not found or deleted").
				WithReportableDetails(map[string]any{
					"payment_method_id": id,
					"customer_id":       customerID,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil
	})
}

func (r *paymentMethodRepository) SoftDelete(ctx context.Context, id string) error {
	tag, err := r.db.Querier(ctx).Exec(ctx, `
		UPDATE payment_methods
		SET deleted = true, is_primary = false, updated_at = $2
		WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete payment method").
			Mark(ierr.ErrDatabase)
	}
	if tag.RowsAffected() == 0 {
		return ierr.NewError("payment method not found").
			WithHint("Payment method not found").
			Mark(ierr.ErrNotFound)
	}
	return nil
}
