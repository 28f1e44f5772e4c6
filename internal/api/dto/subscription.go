package dto

import (
	"time"

	"github.com/cartloop/recurbill/internal/domain/subscription"
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/types"
	"github.com/shopspring/decimal"
)

type CreateSubscriptionRequest struct {
	CustomerID      string          `json:"customer_id" validate:"required"`
	OrderLineID     string          `json:"order_line_id" validate:"required"`
	PaymentMethodID string          `json:"payment_method_id" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`

	// StartDate overrides the first billing date; defaults to today
	StartDate *time.Time `json:"start_date,omitempty"`

	// Defaults are fallback billing attributes applied only where the order
	// line's product options carry no value
	Defaults map[string]string `json:"defaults,omitempty"`
}

func (r *CreateSubscriptionRequest) Validate() error {
	if r.Amount.IsNegative() {
		return ierr.NewError("invalid amount").
			WithHint("Amount cannot be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

type UpdatePaymentStatusRequest struct {
	Status types.ScheduleStatus `json:"status" validate:"required"`

	// CallerCustomerID is the customer id asserted by the caller; when set it
	// must match the subscription's resolved owner
	CallerCustomerID string `json:"caller_customer_id,omitempty"`

	Comment string `json:"comment,omitempty"`
}

func (r *UpdatePaymentStatusRequest) Validate() error {
	return r.Status.Validate()
}

type SubscriptionResponse struct {
	*subscription.Subscription
}

type ListSubscriptionsResponse struct {
	Items []*SubscriptionResponse `json:"items"`
	Total int                     `json:"total"`
}

// ChargeResult is the outcome of charging one due subscription.
type ChargeResult struct {
	SubscriptionID string               `json:"subscription_id"`
	Status         types.ScheduleStatus `json:"status"`
	TransactionID  string               `json:"transaction_id,omitempty"`
	Error          string               `json:"error,omitempty"`

	// NextScheduledID is the id of the renewal row created after a
	// successful charge, empty when the series is exhausted
	NextScheduledID string `json:"next_scheduled_id,omitempty"`
}

// ChargeRunSummary aggregates one cron charging run.
type ChargeRunSummary struct {
	Processed int             `json:"processed"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Skipped   int             `json:"skipped"`
	Results   []*ChargeResult `json:"results,omitempty"`
}
