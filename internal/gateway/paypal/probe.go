package paypal

import (
	"context"

	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/types"
)

// The REST client is an external, independently versioned dependency, so the
// finalization method it exposes is not guaranteed stable. Instead of hard
// binding to one client version, finalization probes an ordered list of known
// capability interfaces and takes the first match. A client matching none of
// them yields a typed method-not-supported error, which the adapter converts
// into a failed charge outcome.

// CaptureOrderer is the capture capability of newer client versions
type CaptureOrderer interface {
	CaptureOrder(ctx context.Context, orderID string) (*OrderResponse, error)
}

// Capturer is the capture capability of older client versions
type Capturer interface {
	Capture(ctx context.Context, orderID string) (*OrderResponse, error)
}

// AuthorizeOrderer is the authorize capability of newer client versions
type AuthorizeOrderer interface {
	AuthorizeOrder(ctx context.Context, orderID string) (*OrderResponse, error)
}

// Authorizer is the authorize capability of older client versions
type Authorizer interface {
	Authorize(ctx context.Context, orderID string) (*OrderResponse, error)
}

// OrderCreator is the one capability every client version exposes
type OrderCreator interface {
	CreateOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error)
}

type finalizeFunc func(ctx context.Context, orderID string) (*OrderResponse, error)

// capture and authorize candidates, tried in order; first match wins
var captureCandidates = []func(client any) (finalizeFunc, bool){
	func(client any) (finalizeFunc, bool) {
		if c, ok := client.(CaptureOrderer); ok {
			return c.CaptureOrder, true
		}
		return nil, false
	},
	func(client any) (finalizeFunc, bool) {
		if c, ok := client.(Capturer); ok {
			return c.Capture, true
		}
		return nil, false
	},
}

var authorizeCandidates = []func(client any) (finalizeFunc, bool){
	func(client any) (finalizeFunc, bool) {
		if c, ok := client.(AuthorizeOrderer); ok {
			return c.AuthorizeOrder, true
		}
		return nil, false
	},
	func(client any) (finalizeFunc, bool) {
		if c, ok := client.(Authorizer); ok {
			return c.Authorize, true
		}
		return nil, false
	},
}

// FinalizeOrder completes a created order through whichever finalization
// capability the client exposes for the given intent.
func FinalizeOrder(ctx context.Context, client any, intent types.PaymentIntent, orderID string) (*OrderResponse, error) {
	var candidates []func(client any) (finalizeFunc, bool)
	switch intent {
	case types.PaymentIntentAuthorize:
		candidates = authorizeCandidates
	case types.PaymentIntentCapture:
		candidates = captureCandidates
	default:
		return nil, ierr.NewError("invalid payment intent").
			WithHint("Payment intent must be CAPTURE or AUTHORIZE").
			WithReportableDetails(map[string]any{
				"intent": intent,
			}).
			Mark(ierr.ErrValidation)
	}

	for _, candidate := range candidates {
		if fn, ok := candidate(client); ok {
			return fn(ctx, orderID)
		}
	}

	return nil, ierr.NewError("gateway client does not support order finalization").
		WithHint("The configured gateway client exposes no capture or authorize capability").
		WithReportableDetails(map[string]any{
			"intent":   intent,
			"order_id": orderID,
		}).
		Mark(ierr.ErrMethodNotSupported)
}
