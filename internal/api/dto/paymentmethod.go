package dto

import (
	"context"

	"github.com/cartloop/recurbill/internal/domain/paymentmethod"
	"github.com/cartloop/recurbill/internal/types"
)

type CreatePaymentMethodRequest struct {
	CustomerID string               `json:"customer_id" validate:"required"`
	APIType    types.GatewayAPIType `json:"api_type" validate:"required"`
	VaultID    string               `json:"vault_id,omitempty"`
	Token      string               `json:"token,omitempty"`

	Brand          string `json:"brand,omitempty"`
	LastFour       string `json:"last_four,omitempty"`
	ExpiryMonth    int    `json:"expiry_month,omitempty"`
	ExpiryYear     int    `json:"expiry_year,omitempty"`
	CardholderName string `json:"cardholder_name,omitempty"`

	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`

	// Primary makes this the customer's default instrument
	Primary bool `json:"is_primary,omitempty"`
}

func (r *CreatePaymentMethodRequest) ToPaymentMethod(ctx context.Context) *paymentmethod.PaymentMethod {
	return &paymentmethod.PaymentMethod{
		ID:             types.GenerateUUIDWithPrefix(types.UUIDPrefixPaymentMethod),
		CustomerID:     r.CustomerID,
		APIType:        r.APIType,
		VaultID:        r.VaultID,
		Token:          r.Token,
		Brand:          r.Brand,
		LastFour:       r.LastFour,
		ExpiryMonth:    r.ExpiryMonth,
		ExpiryYear:     r.ExpiryYear,
		CardholderName: r.CardholderName,
		AddressLine1:   r.AddressLine1,
		AddressLine2:   r.AddressLine2,
		City:           r.City,
		State:          r.State,
		PostalCode:     r.PostalCode,
		CountryCode:    r.CountryCode,
		Primary:        r.Primary,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
}

type PaymentMethodResponse struct {
	*paymentmethod.PaymentMethod
}

type ListPaymentMethodsResponse struct {
	Items []*PaymentMethodResponse `json:"items"`
	Total int                      `json:"total"`
}
