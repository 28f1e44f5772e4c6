package types

import (
	"time"

	ierr "github.com/cartloop/recurbill/internal/errors"
)

// semiMonthDays is the fixed approximation used for the SEMI_MONTH period.
// Both the schedule and skip paths use the same 15-day hop so the two
// operations agree on semantics.
const semiMonthDays = 15

// NextBillingDate computes the next billing date of a subscription series.
//
// The second return value is false when the series produces no further date:
// either all cycles are complete (completedCycles >= TotalCycles > 0) or the
// frequency is the lifetime sentinel. That is a terminal state, not an error.
//
// A non-nil error means the billing attributes are malformed, which is a
// data-integrity problem with the originating order line; callers log it and
// let the subscription stall until the attributes are fixed.
//
// daysToSubtract compensates for catch-up billing after missed cycles. The
// charging loop runs once daily, so days late approximates cycles missed.
// The result is a calendar date with no time-of-day component.
func NextBillingDate(from time.Time, attrs BillingAttributes, completedCycles, daysToSubtract int) (time.Time, bool, error) {
	if attrs.TotalCycles > 0 && completedCycles >= attrs.TotalCycles {
		return time.Time{}, false, nil
	}
	if attrs.IsLifetime() {
		return time.Time{}, false, nil
	}
	if err := attrs.Period.Validate(); err != nil {
		return time.Time{}, false, err
	}
	if attrs.Frequency <= 0 {
		return time.Time{}, false, ierr.NewError("invalid billing frequency").
			WithHint("Billing frequency must be a positive integer").
			WithReportableDetails(map[string]any{
				"frequency": attrs.Frequency,
			}).
			Mark(ierr.ErrValidation)
	}

	var next time.Time
	switch attrs.Period {
	case BILLING_PERIOD_DAILY:
		next = AddClampedDate(from, 0, 0, attrs.Frequency)
	case BILLING_PERIOD_WEEKLY:
		next = AddClampedDate(from, 0, 0, 7*attrs.Frequency)
	case BILLING_PERIOD_SEMI_MONTHLY:
		next = AddClampedDate(from, 0, 0, semiMonthDays*attrs.Frequency)
	case BILLING_PERIOD_MONTHLY:
		next = AddClampedDate(from, 0, attrs.Frequency, 0)
	case BILLING_PERIOD_ANNUAL:
		next = AddClampedDate(from, attrs.Frequency, 0, 0)
	}

	if daysToSubtract > 0 {
		next = next.AddDate(0, 0, -daysToSubtract)
	}

	return DateOnly(next), true, nil
}

// SkipNextPaymentDate computes exactly one forward hop from the given date,
// used when a customer skips their next payment. It shares the canonical
// period vocabulary with NextBillingDate and uses the same calendar-correct
// interval arithmetic, including the fixed 15-day SEMI_MONTH approximation.
func SkipNextPaymentDate(from time.Time, attrs BillingAttributes) (time.Time, error) {
	if err := attrs.Period.Validate(); err != nil {
		return time.Time{}, err
	}
	frequency := attrs.Frequency
	if frequency <= 0 {
		// A lifetime series has no next payment to skip.
		return time.Time{}, ierr.NewError("nothing to skip").
			WithHint("Subscription has no upcoming payment").
			Mark(ierr.ErrInvalidOperation)
	}

	var next time.Time
	switch attrs.Period {
	case BILLING_PERIOD_DAILY:
		next = AddClampedDate(from, 0, 0, frequency)
	case BILLING_PERIOD_WEEKLY:
		next = AddClampedDate(from, 0, 0, 7*frequency)
	case BILLING_PERIOD_SEMI_MONTHLY:
		next = AddClampedDate(from, 0, 0, semiMonthDays*frequency)
	case BILLING_PERIOD_MONTHLY:
		next = AddClampedDate(from, 0, frequency, 0)
	case BILLING_PERIOD_ANNUAL:
		next = AddClampedDate(from, frequency, 0, 0)
	}

	return DateOnly(next), nil
}

// AddClampedDate adds years, months and days to a time, clamping the day of
// month to the last valid day instead of overflowing into the next month the
// way time.AddDate does (Jan 31 + 1 month = Feb 28/29, not Mar 2/3).
func AddClampedDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := time.Month(int(m) + months)

	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	// Find the last valid day of the new month
	firstOfNextMonth := time.Date(newY, newM+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfNextMonth.Add(-24 * time.Hour).Day()

	newD := d + days
	if days == 0 && newD > lastDay {
		// Month/year hop landing past the end of the shorter month
		newD = lastDay
	}

	// time.Date normalizes day overflow from pure day arithmetic, which is
	// the desired rollover behavior (Mar 31 + 5 days = Apr 5).
	return time.Date(newY, newM, newD, h, min, sec, t.Nanosecond(), t.Location())
}

// DateOnly truncates a time to its calendar date in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
