package paymentmethod

import (
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/types"
)

// PaymentMethod is a saved payment instrument vaulted with the vendor.
type PaymentMethod struct {
	// ID is the unique identifier in our system
	ID string `db:"id" json:"id"`

	// CustomerID is the owning customer
	CustomerID string `db:"customer_id" json:"customer_id"`

	// APIType selects which vendor back end this instrument is charged
	// through: the legacy NVP API or the REST orders API
	APIType types.GatewayAPIType `db:"api_type" json:"api_type"`

	// VaultID is the vendor's vaulted payment-method token, when the card was
	// saved with full metadata through the REST vault
	VaultID string `db:"vault_id" json:"vault_id,omitempty"`

	// Token is a bare stored-credential/billing-agreement token, used as the
	// fallback payment source when no vault id exists
	Token string `db:"token" json:"token,omitempty"`

	// Card display metadata
	Brand          string `db:"brand" json:"brand,omitempty"`
	LastFour       string `db:"last_four" json:"last_four,omitempty"`
	ExpiryMonth    int    `db:"expiry_month" json:"expiry_month,omitempty"`
	ExpiryYear     int    `db:"expiry_year" json:"expiry_year,omitempty"`
	CardholderName string `db:"cardholder_name" json:"cardholder_name,omitempty"`

	// Billing address, sent with vaulted-card charges
	AddressLine1 string `db:"address_line1" json:"address_line1,omitempty"`
	AddressLine2 string `db:"address_line2" json:"address_line2,omitempty"`
	City         string `db:"city" json:"city,omitempty"`
	State        string `db:"state" json:"state,omitempty"`
	PostalCode   string `db:"postal_code" json:"postal_code,omitempty"`
	CountryCode  string `db:"country_code" json:"country_code,omitempty"`

	// Deleted marks a removed instrument. Rows are soft-deleted so historic
	// subscriptions keep a valid reference.
	Deleted bool `db:"deleted" json:"deleted"`

	// Primary marks the customer's default instrument. At most one primary
	// exists among a customer's non-deleted instruments, enforced at write
	// time rather than by a database constraint.
	Primary bool `db:"is_primary" json:"is_primary"`

	types.BaseModel
}

// Usable reports whether the instrument can still be charged.
func (p *PaymentMethod) Usable() bool {
	return p != nil && !p.Deleted && (p.VaultID != "" || p.Token != "")
}

// Validate validates the payment method
func (p *PaymentMethod) Validate() error {
	if p.CustomerID == "" {
		return ierr.NewError("missing customer id").
			WithHint("Payment method must belong to a customer").
			Mark(ierr.ErrValidation)
	}
	if err := p.APIType.Validate(); err != nil {
		return err
	}
	if p.VaultID == "" && p.Token == "" {
		return ierr.NewError("missing vendor token").
			WithHint("Payment method must carry a vault id or a stored-credential token").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TableName returns the table name for payment methods
func (p *PaymentMethod) TableName() string {
	return "payment_methods"
}
