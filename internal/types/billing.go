package types

import (
	"strconv"
	"strings"
	"time"

	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/samber/lo"
)

// BillingPeriod is the canonical billing period unit of a subscription
type BillingPeriod string

const (
	BILLING_PERIOD_DAILY        BillingPeriod = "DAY"
	BILLING_PERIOD_WEEKLY       BillingPeriod = "WEEK"
	BILLING_PERIOD_SEMI_MONTHLY BillingPeriod = "SEMI_MONTH"
	BILLING_PERIOD_MONTHLY      BillingPeriod = "MONTH"
	BILLING_PERIOD_ANNUAL       BillingPeriod = "YEAR"
)

// FrequencyLifetime is the sentinel frequency meaning the subscription is
// charged once and never again.
const FrequencyLifetime = 0

func (p BillingPeriod) String() string {
	return string(p)
}

func (p BillingPeriod) Validate() error {
	allowed := []BillingPeriod{
		BILLING_PERIOD_DAILY,
		BILLING_PERIOD_WEEKLY,
		BILLING_PERIOD_SEMI_MONTHLY,
		BILLING_PERIOD_MONTHLY,
		BILLING_PERIOD_ANNUAL,
	}
	if !lo.Contains(allowed, p) {
		return ierr.NewError("invalid billing period").
			WithHint("Invalid billing period").
			WithReportableDetails(map[string]any{
				"allowed_values": allowed,
				"provided_value": p,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// NormalizeAttributeKey lowercases and strips whitespace and hyphens so that
// data-entry variants of the same vocabulary word compare equal.
func NormalizeAttributeKey(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}

// billingPeriodSynonyms maps normalized period vocabulary found in product
// option data to the canonical period units.
var billingPeriodSynonyms = map[string]BillingPeriod{
	"day":         BILLING_PERIOD_DAILY,
	"daily":       BILLING_PERIOD_DAILY,
	"week":        BILLING_PERIOD_WEEKLY,
	"weekly":      BILLING_PERIOD_WEEKLY,
	"semimonth":   BILLING_PERIOD_SEMI_MONTHLY,
	"semimonthly": BILLING_PERIOD_SEMI_MONTHLY,
	"biweekly":    BILLING_PERIOD_SEMI_MONTHLY,
	"month":       BILLING_PERIOD_MONTHLY,
	"monthly":     BILLING_PERIOD_MONTHLY,
	"year":        BILLING_PERIOD_ANNUAL,
	"yearly":      BILLING_PERIOD_ANNUAL,
}

// ParseBillingPeriod canonicalizes a raw period string from order-line
// attributes or snapshots. Unknown vocabulary is a configuration error on the
// originating order line, not a transient failure.
func ParseBillingPeriod(raw string) (BillingPeriod, error) {
	if period, ok := billingPeriodSynonyms[NormalizeAttributeKey(raw)]; ok {
		return period, nil
	}
	return "", ierr.NewError("unknown billing period").
		WithHint("Billing period is not a recognized value").
		WithReportableDetails(map[string]any{
			"provided_value": raw,
		}).
		Mark(ierr.ErrValidation)
}

// billingFrequencySynonyms carries the textual fallbacks of the legacy
// data-entry vocabulary. The "365 days" -> 12 mapping predates this service
// and is preserved as-is for compatibility with existing rows.
var billingFrequencySynonyms = map[string]int{
	"lifetime":  FrequencyLifetime,
	"quarterly": 3,
	"monthly":   1,
	"30days":    1,
	"365days":   12,
}

// ParseBillingFrequency canonicalizes a raw frequency string. It returns
// either a positive integer, or FrequencyLifetime for the no-further-billing
// sentinel.
func ParseBillingFrequency(raw string) (int, error) {
	key := NormalizeAttributeKey(raw)
	if freq, ok := billingFrequencySynonyms[key]; ok {
		return freq, nil
	}
	if freq, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && freq > 0 {
		return freq, nil
	}
	return 0, ierr.NewError("unknown billing frequency").
		WithHint("Billing frequency must be a positive integer or a recognized value").
		WithReportableDetails(map[string]any{
			"provided_value": raw,
		}).
		Mark(ierr.ErrValidation)
}

// BillingAttributes is the canonical attribute record of a subscription,
// merged from up to three sources by the attribute resolver. It is computed
// on each read and never owned by a single writer.
type BillingAttributes struct {
	// Period is the canonical billing period unit
	Period BillingPeriod `json:"period"`

	// Frequency is the period multiplier, or FrequencyLifetime for the
	// charge-once sentinel
	Frequency int `json:"frequency"`

	// TotalCycles is the total number of billing cycles. 0 means unbounded,
	// i.e. the subscription bills until cancelled.
	TotalCycles int `json:"total_cycles"`

	// StartDate is the date the series started, if known
	StartDate *time.Time `json:"start_date,omitempty"`

	// Currency is the three-letter ISO currency code
	Currency string `json:"currency"`

	// Domain is the arbitrary domain tag carried on the order line
	Domain string `json:"domain,omitempty"`

	// Name and Model identify the originating product
	Name  string `json:"name"`
	Model string `json:"model"`
}

// Validate checks the invariant that a subscription line item must carry both
// a canonical period and a resolvable frequency.
func (a BillingAttributes) Validate() error {
	if err := a.Period.Validate(); err != nil {
		return err
	}
	if a.Frequency < 0 {
		return ierr.NewError("invalid billing frequency").
			WithHint("Billing frequency must be positive or the lifetime sentinel").
			WithReportableDetails(map[string]any{
				"frequency": a.Frequency,
			}).
			Mark(ierr.ErrValidation)
	}
	if a.TotalCycles < 0 {
		return ierr.NewError("invalid total cycles").
			WithHint("Total billing cycles cannot be negative").
			WithReportableDetails(map[string]any{
				"total_cycles": a.TotalCycles,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsLifetime reports whether the series never bills again after the first
// charge.
func (a BillingAttributes) IsLifetime() bool {
	return a.Frequency == FrequencyLifetime
}
