package paypal

// Wire types for the vendor REST orders API. Field names are fixed by the
// vendor's API version and must stay verbatim.

// OrderRequest is the order-creation request body
type OrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
	PaymentSource *PaymentSource `json:"payment_source,omitempty"`
}

// PurchaseUnit is one unit of the order; recurring charges always send
// exactly one.
type PurchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	Amount      Amount `json:"amount"`
	Description string `json:"description,omitempty"`
}

// Amount is a currency/value pair; value is a decimal string
type Amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// PaymentSource selects how the order is funded. Exactly one of Card or
// Token is set: a vaulted card with full metadata when available, otherwise
// a bare stored-credential token.
type PaymentSource struct {
	Card  *CardSource  `json:"card,omitempty"`
	Token *TokenSource `json:"token,omitempty"`
}

// CardSource charges a previously vaulted payment method
type CardSource struct {
	VaultID          string            `json:"vault_id"`
	Expiry           string            `json:"expiry,omitempty"`
	Name             string            `json:"name,omitempty"`
	BillingAddress   *Address          `json:"billing_address,omitempty"`
	StoredCredential *StoredCredential `json:"stored_credential,omitempty"`
}

// TokenSource charges a bare billing-agreement token
type TokenSource struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// TokenTypeBillingAgreement is the vendor token type for stored-credential
// charges without vaulted card metadata.
const TokenTypeBillingAgreement = "BILLING_AGREEMENT"

// Address is the vendor's billing address shape
type Address struct {
	AddressLine1 string `json:"address_line_1,omitempty"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	AdminArea2   string `json:"admin_area_2,omitempty"`
	AdminArea1   string `json:"admin_area_1,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	CountryCode  string `json:"country_code"`
}

// StoredCredential describes why a saved payment method may be charged
// without the cardholder present.
type StoredCredential struct {
	PaymentInitiator string `json:"payment_initiator"`
	PaymentType      string `json:"payment_type"`
	Usage            string `json:"usage"`
}

// Stored-credential values for merchant-initiated recurring charges
const (
	PaymentInitiatorMerchant = "MERCHANT"
	PaymentTypeRecurring     = "RECURRING"
	UsageSubsequent          = "SUBSEQUENT"
)

// OrderResponse is the shared response shape of order create, capture and
// authorize calls.
type OrderResponse struct {
	ID            string                 `json:"id"`
	Status        string                 `json:"status"`
	PurchaseUnits []PurchaseUnitResponse `json:"purchase_units,omitempty"`
}

// PurchaseUnitResponse carries the payments resulting from finalization
type PurchaseUnitResponse struct {
	ReferenceID string    `json:"reference_id,omitempty"`
	Payments    *Payments `json:"payments,omitempty"`
}

// Payments holds captured or authorized transactions
type Payments struct {
	Captures       []CapturedPayment   `json:"captures,omitempty"`
	Authorizations []AuthorizedPayment `json:"authorizations,omitempty"`
}

// CapturedPayment is one capture inside a purchase unit
type CapturedPayment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount Amount `json:"amount"`
}

// AuthorizedPayment is one authorization inside a purchase unit
type AuthorizedPayment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount Amount `json:"amount"`
}

// ExtractTransactionID walks an order response for the transaction id:
// purchase_units[].payments.{captures|authorizations}[].id first, then the
// top-level order id, then the provided fallback (a previously extracted
// vault or token id).
func ExtractTransactionID(resp *OrderResponse, fallback string) string {
	if resp != nil {
		for _, pu := range resp.PurchaseUnits {
			if pu.Payments == nil {
				continue
			}
			for _, c := range pu.Payments.Captures {
				if c.ID != "" {
					return c.ID
				}
			}
			for _, a := range pu.Payments.Authorizations {
				if a.ID != "" {
					return a.ID
				}
			}
		}
		if resp.ID != "" {
			return resp.ID
		}
	}
	return fallback
}
