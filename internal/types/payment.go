package types

import (
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/samber/lo"
)

// GatewayAPIType discriminates which vendor back end a saved payment
// instrument is charged through.
type GatewayAPIType string

const (
	// GatewayAPITypeNVP is the legacy name-value-pair API
	GatewayAPITypeNVP GatewayAPIType = "nvp"
	// GatewayAPITypeREST is the modern REST orders API
	GatewayAPITypeREST GatewayAPIType = "rest"
)

func (t GatewayAPIType) String() string {
	return string(t)
}

func (t GatewayAPIType) Validate() error {
	allowed := []GatewayAPIType{
		GatewayAPITypeNVP,
		GatewayAPITypeREST,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid gateway api type").
			WithHint("Invalid gateway api type").
			WithReportableDetails(map[string]any{
				"api_type":       t,
				"allowed_values": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentIntent is the vendor order intent
type PaymentIntent string

const (
	PaymentIntentCapture   PaymentIntent = "CAPTURE"
	PaymentIntentAuthorize PaymentIntent = "AUTHORIZE"
)

func (i PaymentIntent) String() string {
	return string(i)
}

func (i PaymentIntent) Validate() error {
	allowed := []PaymentIntent{
		PaymentIntentCapture,
		PaymentIntentAuthorize,
	}
	if !lo.Contains(allowed, i) {
		return ierr.NewError("invalid payment intent").
			WithHint("Payment intent must be CAPTURE or AUTHORIZE").
			WithReportableDetails(map[string]any{
				"intent":         i,
				"allowed_values": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Metadata is a key value store for additional information
type Metadata map[string]string
