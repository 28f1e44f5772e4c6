package testutil

import (
	"context"
	"sync"

	"github.com/cartloop/recurbill/internal/domain/paymentmethod"
	"github.com/cartloop/recurbill/internal/gateway"
	"github.com/shopspring/decimal"
)

// ChargeCall records one charge attempt made against the fake gateway.
type ChargeCall struct {
	PaymentMethodID string
	Amount          decimal.Decimal
	Currency        string
}

// FakeGateway implements gateway.Gateway with a scripted outcome.
type FakeGateway struct {
	mu sync.Mutex

	// Fail makes every charge return a failed outcome with FailError.
	Fail      bool
	FailError string

	// TransactionID returned on successful charges.
	TransactionID string

	Calls []ChargeCall
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{TransactionID: "TXN-TEST-1"}
}

func (g *FakeGateway) Charge(ctx context.Context, pm *paymentmethod.PaymentMethod, amount decimal.Decimal, currency string) gateway.ChargeOutcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Calls = append(g.Calls, ChargeCall{
		PaymentMethodID: pm.ID,
		Amount:          amount,
		Currency:        currency,
	})

	if g.Fail {
		msg := g.FailError
		if msg == "" {
			msg = "declined"
		}
		return gateway.ChargeOutcome{Success: false, Error: msg}
	}
	return gateway.ChargeOutcome{Success: true, TransactionID: g.TransactionID}
}

// CallCount returns the number of charge attempts made.
func (g *FakeGateway) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls)
}
