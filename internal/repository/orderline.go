package repository

import (
	"context"

	"github.com/cartloop/recurbill/internal/domain/orderline"
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/logger"
	"github.com/cartloop/recurbill/internal/postgres"
	"github.com/cartloop/recurbill/internal/types"
	"github.com/jackc/pgx/v5"
)

type orderLineRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewOrderLineRepository(db postgres.IClient, log *logger.Logger) orderline.Repository {
	return &orderLineRepository{db: db, logger: log}
}

func (r *orderLineRepository) GetWithAttributes(ctx context.Context, id string) (*orderline.OrderLine, error) {
	var ol orderline.OrderLine
	err := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT id, order_id, customer_id, product_name, product_model,
			price, currency, status, created_at, updated_at, created_by, updated_by
		FROM order_lines
		WHERE id = $1 AND status != $2`, id, types.StatusDeleted).Scan(
		&ol.ID, &ol.OrderID, &ol.CustomerID, &ol.ProductName, &ol.ProductModel,
		&ol.Price, &ol.Currency,
		&ol.BaseModel.Status, &ol.CreatedAt, &ol.UpdatedAt, &ol.CreatedBy, &ol.UpdatedBy,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ierr.NewError("order line not found").
				WithHint("Order line missing or deleted").
				WithReportableDetails(map[string]any{
					"order_line_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to read order line").
			Mark(ierr.ErrDatabase)
	}

	rows, err := r.db.Querier(ctx).Query(ctx, `
		SELECT id, order_line_id, name, value
		FROM order_line_attributes
		WHERE order_line_id = $1
		ORDER BY name ASC`, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read order line attributes").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	for rows.Next() {
		var attr orderline.Attribute
		if err := rows.Scan(&attr.ID, &attr.OrderLineID, &attr.Name, &attr.Value); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to read order line attributes").
				Mark(ierr.ErrDatabase)
		}
		ol.Attributes = append(ol.Attributes, attr)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to iterate order line attributes").
			Mark(ierr.ErrDatabase)
	}
	return &ol, nil
}
