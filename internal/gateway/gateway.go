package gateway

import (
	"context"

	"github.com/cartloop/recurbill/internal/domain/paymentmethod"
	"github.com/shopspring/decimal"
)

// ChargeOutcome is the result of one charge attempt. It is created fresh per
// attempt and folded into the subscription's status and comments, never
// persisted on its own.
type ChargeOutcome struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Gateway abstracts the two heterogeneous vendor back ends behind one charge
// contract. Implementations never return an error: every vendor failure is
// folded into a failed outcome so nothing propagates into the lifecycle
// manager.
type Gateway interface {
	Charge(ctx context.Context, pm *paymentmethod.PaymentMethod, amount decimal.Decimal, currency string) ChargeOutcome
}

// ErrorNotifier receives gateway exceptions for the admin alerting path.
// Notifications are fire-and-forget; delivery failure never affects the
// charge outcome.
type ErrorNotifier interface {
	NotifyGatewayError(ctx context.Context, subject, body string)
}

func failedOutcome(err error) ChargeOutcome {
	return ChargeOutcome{Success: false, Error: err.Error()}
}
