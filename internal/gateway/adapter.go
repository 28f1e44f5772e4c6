package gateway

import (
	"context"
	"fmt"

	"github.com/cartloop/recurbill/internal/domain/paymentmethod"
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/gateway/paypal"
	"github.com/cartloop/recurbill/internal/logger"
	"github.com/cartloop/recurbill/internal/types"
	"github.com/shopspring/decimal"
)

// Adapter routes charges to the REST or legacy back end based on the payment
// instrument's api_type discriminator. Both clients are held as `any` on
// purpose: they are external, independently versioned dependencies, and the
// adapter binds to them only through capability interfaces.
type Adapter struct {
	rest     any
	legacy   any
	intent   types.PaymentIntent
	notifier ErrorNotifier
	logger   *logger.Logger
}

// NewAdapter creates a gateway adapter over the given clients
func NewAdapter(rest any, legacy any, intent types.PaymentIntent, notifier ErrorNotifier, log *logger.Logger) Gateway {
	return &Adapter{
		rest:     rest,
		legacy:   legacy,
		intent:   intent,
		notifier: notifier,
		logger:   log,
	}
}

// Charge runs one charge attempt. Vendor errors of any kind become a failed
// outcome and an admin notification; they never propagate to the caller.
func (a *Adapter) Charge(ctx context.Context, pm *paymentmethod.PaymentMethod, amount decimal.Decimal, currency string) ChargeOutcome {
	if !pm.Usable() {
		return ChargeOutcome{
			Success: false,
			Error:   "payment instrument is deleted or carries no vendor token",
		}
	}

	switch pm.APIType {
	case types.GatewayAPITypeREST:
		return a.chargeREST(ctx, pm, amount, currency)
	case types.GatewayAPITypeNVP:
		return a.chargeLegacy(ctx, pm, amount, currency)
	default:
		return ChargeOutcome{
			Success: false,
			Error:   fmt.Sprintf("unknown gateway api type: %s", pm.APIType),
		}
	}
}

func (a *Adapter) chargeREST(ctx context.Context, pm *paymentmethod.PaymentMethod, amount decimal.Decimal, currency string) ChargeOutcome {
	creator, ok := a.rest.(paypal.OrderCreator)
	if !ok {
		err := ierr.NewError("gateway client cannot create orders").
			WithHint("The configured gateway client exposes no order-creation capability").
			Mark(ierr.ErrMethodNotSupported)
		a.report(ctx, "order create unavailable", err)
		return failedOutcome(err)
	}

	req := BuildOrderRequest(pm, amount, currency, a.intent)

	order, err := creator.CreateOrder(ctx, req)
	if err != nil {
		a.report(ctx, "order create failed", err)
		return failedOutcome(err)
	}

	finalized, err := paypal.FinalizeOrder(ctx, a.rest, a.intent, order.ID)
	if err != nil {
		a.report(ctx, "order finalize failed", err)
		return failedOutcome(err)
	}

	// Prior token extraction serves as the last-resort transaction reference
	fallback := pm.VaultID
	if fallback == "" {
		fallback = pm.Token
	}

	txnID := paypal.ExtractTransactionID(finalized, fallback)
	if txnID == "" {
		txnID = paypal.ExtractTransactionID(order, fallback)
	}

	a.logger.Infow("gateway charge completed",
		"api_type", pm.APIType,
		"transaction_id", txnID,
		"amount", amount.StringFixed(2),
		"currency", currency,
	)

	return ChargeOutcome{Success: true, TransactionID: txnID}
}

func (a *Adapter) chargeLegacy(ctx context.Context, pm *paymentmethod.PaymentMethod, amount decimal.Decimal, currency string) ChargeOutcome {
	processor, ok := a.legacy.(paypal.LegacyProcessor)
	if !ok {
		// Absence of the legacy capability is a failure outcome, not a crash
		return ChargeOutcome{
			Success: false,
			Error:   "legacy gateway client does not support reference transactions",
		}
	}

	reference := pm.Token
	if reference == "" {
		reference = pm.VaultID
	}

	result, err := processor.Process(ctx, "Sale", reference, amount, currency)
	if err != nil {
		a.report(ctx, "legacy charge failed", err)
		return failedOutcome(err)
	}

	if !result.Succeeded() {
		msg := result.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("legacy gateway declined: %s", result.Ack)
		}
		return ChargeOutcome{Success: false, Error: msg}
	}

	return ChargeOutcome{Success: true, TransactionID: result.TransactionID}
}

func (a *Adapter) report(ctx context.Context, subject string, err error) {
	a.logger.Errorw("gateway error",
		"subject", subject,
		"error", err,
	)
	if a.notifier != nil {
		a.notifier.NotifyGatewayError(ctx, "Payment gateway error: "+subject, err.Error())
	}
}

// BuildOrderRequest assembles the order-creation body for a recurring charge.
// Payment source priority: a vaulted payment-method token with full card
// metadata when available, otherwise a bare stored-credential token.
func BuildOrderRequest(pm *paymentmethod.PaymentMethod, amount decimal.Decimal, currency string, intent types.PaymentIntent) *paypal.OrderRequest {
	req := &paypal.OrderRequest{
		Intent: intent.String(),
		PurchaseUnits: []paypal.PurchaseUnit{
			{
				Amount: paypal.Amount{
					CurrencyCode: currency,
					Value:        amount.StringFixed(2),
				},
			},
		},
	}

	if pm.VaultID != "" {
		card := &paypal.CardSource{
			VaultID: pm.VaultID,
			Name:    pm.CardholderName,
			StoredCredential: &paypal.StoredCredential{
				PaymentInitiator: paypal.PaymentInitiatorMerchant,
				PaymentType:      paypal.PaymentTypeRecurring,
				Usage:            paypal.UsageSubsequent,
			},
		}
		if pm.ExpiryYear > 0 && pm.ExpiryMonth > 0 {
			card.Expiry = fmt.Sprintf("%04d-%02d", pm.ExpiryYear, pm.ExpiryMonth)
		}
		if pm.CountryCode != "" {
			card.BillingAddress = &paypal.Address{
				AddressLine1: pm.AddressLine1,
				AddressLine2: pm.AddressLine2,
				AdminArea2:   pm.City,
				AdminArea1:   pm.State,
				PostalCode:   pm.PostalCode,
				CountryCode:  pm.CountryCode,
			}
		}
		req.PaymentSource = &paypal.PaymentSource{Card: card}
		return req
	}

	req.PaymentSource = &paypal.PaymentSource{
		Token: &paypal.TokenSource{
			ID:   pm.Token,
			Type: paypal.TokenTypeBillingAgreement,
		},
	}
	return req
}
