package orderline

import "context"

type Repository interface {
	// GetWithAttributes loads an order line and its selected product option
	// attributes. Returns a not-found error when the line has been deleted.
	GetWithAttributes(ctx context.Context, id string) (*OrderLine, error)
}
