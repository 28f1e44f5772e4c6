package customer

import (
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/types"
)

// Customer is the owner of subscriptions and saved payment instruments.
type Customer struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`

	types.BaseModel
}

func (c *Customer) Validate() error {
	if c.Email == "" {
		return ierr.NewError("missing email").
			WithHint("Customer email is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TableName returns the table name for customers
func (c *Customer) TableName() string {
	return "customers"
}
