package paymentmethod

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, pm *PaymentMethod) error
	Get(ctx context.Context, id string) (*PaymentMethod, error)
	Update(ctx context.Context, pm *PaymentMethod) error
	ListByCustomer(ctx context.Context, customerID string) ([]*PaymentMethod, error)

	// GetPrimary returns the customer's default non-deleted instrument, or a
	// not-found error when none exists.
	GetPrimary(ctx context.Context, customerID string) (*PaymentMethod, error)

	// SetPrimary flags the given instrument as the customer's default and
	// clears the flag on every other non-deleted instrument in the same
	// write, preserving the at-most-one-primary invariant.
	SetPrimary(ctx context.Context, customerID, id string) error

	// SoftDelete marks the instrument deleted without removing the row.
	SoftDelete(ctx context.Context, id string) error
}
