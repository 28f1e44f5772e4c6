package subscription

import (
	"fmt"
	"strings"
	"time"

	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/types"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Subscription is one scheduled billing attempt within a lineage. Completed,
// failed and cancelled rows are retained as history and never deleted; at most
// one scheduled row is active per lineage at a time.
type Subscription struct {
	// ID is the unique identifier for this billing attempt row
	ID string `db:"id" json:"id"`

	// LineageID groups all rows of one subscription lifetime
	LineageID string `db:"lineage_id" json:"lineage_id"`

	// CustomerID is the owning customer
	CustomerID string `db:"customer_id" json:"customer_id"`

	// OrderLineID references the originating order line. It is optional and
	// may be severed if the source order line is deleted.
	OrderLineID *string `db:"order_line_id" json:"order_line_id,omitempty"`

	// PaymentMethodID references the saved payment instrument to charge
	PaymentMethodID string `db:"payment_method_id" json:"payment_method_id"`

	// Amount is the amount to charge. Stored as a decimal string to avoid
	// floating rounding.
	Amount decimal.Decimal `db:"amount" json:"amount"`

	// Currency is the three-letter ISO currency code
	Currency string `db:"currency" json:"currency"`

	// ScheduledAt is the date this attempt is due. Date only, no time of day.
	ScheduledAt time.Time `db:"scheduled_at" json:"scheduled_at"`

	// ScheduleStatus is the state of this billing attempt
	ScheduleStatus types.ScheduleStatus `db:"schedule_status" json:"schedule_status"`

	// Comments is an append-only log of processing notes
	Comments string `db:"comments" json:"comments"`

	// Snapshot is the billing attributes captured at schedule time so later
	// reads do not depend on the possibly deleted originating order line
	Snapshot *AttributeSnapshot `db:"snapshot" json:"snapshot,omitempty"`

	// TransactionID is the gateway transaction id of a completed attempt
	TransactionID *string `db:"transaction_id" json:"transaction_id,omitempty"`

	// Version supports optimistic concurrency on status transitions
	Version int `db:"version" json:"version"`

	types.BaseModel
}

// AttributeSnapshot is the JSON blob embedded in a subscription row capturing
// billing attributes at schedule time. Field values are kept in their raw
// data-entry form; canonicalization happens on read.
type AttributeSnapshot struct {
	BillingPeriod      string `json:"billingperiod"`
	BillingFrequency   string `json:"billingfrequency"`
	TotalBillingCycles int    `json:"totalbillingcycles"`
	StartDate          string `json:"startdate,omitempty"`
	Domain             string `json:"domain,omitempty"`
	Currency           string `json:"currency,omitempty"`
	Name               string `json:"name,omitempty"`
	Model              string `json:"model,omitempty"`
}

// MarshalSnapshot serializes a snapshot to its JSON column form
func MarshalSnapshot(s *AttributeSnapshot) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to serialize billing attribute snapshot").
			Mark(ierr.ErrSystem)
	}
	return data, nil
}

// UnmarshalSnapshot parses the JSON column form of a snapshot. Empty input
// yields a nil snapshot, not an error.
func UnmarshalSnapshot(data []byte) (*AttributeSnapshot, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var s AttributeSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Billing attribute snapshot is not valid JSON").
			Mark(ierr.ErrValidation)
	}
	return &s, nil
}

// IsComplete reports whether the snapshot carries every key required to bill
// without consulting the originating order line.
func (s *AttributeSnapshot) IsComplete() bool {
	if s == nil {
		return false
	}
	return s.BillingPeriod != "" && s.BillingFrequency != "" && s.Name != "" && s.Model != ""
}

// ToBillingAttributes canonicalizes the snapshot into the attribute record
// used by the billing date calculator.
func (s *AttributeSnapshot) ToBillingAttributes() (types.BillingAttributes, error) {
	if s == nil {
		return types.BillingAttributes{}, ierr.NewError("missing billing attribute snapshot").
			WithHint("Subscription has no billing attributes").
			Mark(ierr.ErrValidation)
	}

	period, err := types.ParseBillingPeriod(s.BillingPeriod)
	if err != nil {
		return types.BillingAttributes{}, err
	}
	frequency, err := types.ParseBillingFrequency(s.BillingFrequency)
	if err != nil {
		return types.BillingAttributes{}, err
	}

	attrs := types.BillingAttributes{
		Period:      period,
		Frequency:   frequency,
		TotalCycles: s.TotalBillingCycles,
		Currency:    s.Currency,
		Domain:      s.Domain,
		Name:        s.Name,
		Model:       s.Model,
	}

	if s.StartDate != "" {
		if start, err := time.Parse("2006-01-02", s.StartDate); err == nil {
			attrs.StartDate = &start
		}
	}

	return attrs, nil
}

// AppendComment appends a dated note to the subscription's comment log.
// The log is append-only; existing comments are never rewritten.
func (s *Subscription) AppendComment(comment string) {
	entry := fmt.Sprintf("%s: %s", time.Now().UTC().Format("2006-01-02"), comment)
	if s.Comments == "" {
		s.Comments = entry
		return
	}
	s.Comments = s.Comments + "\n" + entry
}

// HasComment reports whether the comment log already contains the given
// token. Used to keep automatic cancellation comments idempotent.
func (s *Subscription) HasComment(token string) bool {
	return strings.Contains(s.Comments, token)
}

// Validate validates the subscription row
func (s *Subscription) Validate() error {
	if s.CustomerID == "" {
		return ierr.NewError("missing customer id").
			WithHint("Subscription must belong to a customer").
			Mark(ierr.ErrValidation)
	}
	if s.PaymentMethodID == "" {
		return ierr.NewError("missing payment method id").
			WithHint("Subscription must reference a saved payment instrument").
			Mark(ierr.ErrValidation)
	}
	if s.Amount.IsZero() || s.Amount.IsNegative() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must be greater than 0").
			Mark(ierr.ErrValidation)
	}
	if s.Currency == "" {
		return ierr.NewError("missing currency").
			WithHint("Currency is required").
			Mark(ierr.ErrValidation)
	}
	if err := s.ScheduleStatus.Validate(); err != nil {
		return err
	}
	return nil
}

// TableName returns the table name for subscriptions
func (s *Subscription) TableName() string {
	return "subscriptions"
}
