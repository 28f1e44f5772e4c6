package dto

import (
	"context"

	"github.com/cartloop/recurbill/internal/domain/customer"
	"github.com/cartloop/recurbill/internal/types"
)

type CreateCustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"required,email"`
}

func (r *CreateCustomerRequest) ToCustomer(ctx context.Context) *customer.Customer {
	return &customer.Customer{
		ID:        types.GenerateUUIDWithPrefix(types.UUIDPrefixCustomer),
		Name:      r.Name,
		Email:     r.Email,
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
}

type CustomerResponse struct {
	*customer.Customer
}
