package types

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextBillingDate_PeriodUnits(t *testing.T) {
	from := date(2024, time.March, 10)

	tests := []struct {
		name      string
		period    BillingPeriod
		frequency int
		want      time.Time
	}{
		{"daily freq 1", BILLING_PERIOD_DAILY, 1, date(2024, time.March, 11)},
		{"daily freq 10", BILLING_PERIOD_DAILY, 10, date(2024, time.March, 20)},
		{"weekly freq 1", BILLING_PERIOD_WEEKLY, 1, date(2024, time.March, 17)},
		{"weekly freq 2", BILLING_PERIOD_WEEKLY, 2, date(2024, time.March, 24)},
		{"semi-month freq 1", BILLING_PERIOD_SEMI_MONTHLY, 1, date(2024, time.March, 25)},
		{"monthly freq 1", BILLING_PERIOD_MONTHLY, 1, date(2024, time.April, 10)},
		{"monthly freq 3", BILLING_PERIOD_MONTHLY, 3, date(2024, time.June, 10)},
		{"annual freq 1", BILLING_PERIOD_ANNUAL, 1, date(2025, time.March, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := BillingAttributes{Period: tt.period, Frequency: tt.frequency}
			got, ok, err := NextBillingDate(from, attrs, 0, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !ok {
				t.Fatal("expected a next date, got series end")
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextBillingDate_MonthEndClamping(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{"jan 31 to feb 29 leap", date(2024, time.January, 31), date(2024, time.February, 29)},
		{"jan 31 to feb 28", date(2023, time.January, 31), date(2023, time.February, 28)},
		{"mar 31 to apr 30", date(2024, time.March, 31), date(2024, time.April, 30)},
		{"mid month unaffected", date(2024, time.April, 15), date(2024, time.May, 15)},
	}

	attrs := BillingAttributes{Period: BILLING_PERIOD_MONTHLY, Frequency: 1}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := NextBillingDate(tt.from, attrs, 0, 0)
			if err != nil || !ok {
				t.Fatalf("err=%v ok=%v", err, ok)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextBillingDate_SeriesExhaustion(t *testing.T) {
	attrs := BillingAttributes{
		Period:      BILLING_PERIOD_MONTHLY,
		Frequency:   1,
		TotalCycles: 12,
	}

	_, ok, err := NextBillingDate(date(2024, time.March, 1), attrs, 12, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected exhausted series after 12 of 12 cycles")
	}

	_, ok, err = NextBillingDate(date(2024, time.March, 1), attrs, 15, 0)
	if err != nil || ok {
		t.Errorf("completed beyond total should also end the series, ok=%v err=%v", ok, err)
	}

	_, ok, err = NextBillingDate(date(2024, time.March, 1), attrs, 11, 0)
	if err != nil || !ok {
		t.Errorf("11 of 12 cycles should still produce a date, ok=%v err=%v", ok, err)
	}
}

func TestNextBillingDate_Lifetime(t *testing.T) {
	attrs := BillingAttributes{
		Period:    BILLING_PERIOD_MONTHLY,
		Frequency: FrequencyLifetime,
	}
	_, ok, err := NextBillingDate(date(2024, time.March, 1), attrs, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("lifetime series never produces a next date")
	}
}

func TestNextBillingDate_MalformedAttributes(t *testing.T) {
	_, ok, err := NextBillingDate(date(2024, time.March, 1), BillingAttributes{Period: "", Frequency: 1}, 0, 0)
	if err == nil {
		t.Error("empty period must be a configuration error")
	}
	if ok {
		t.Error("malformed attributes must not produce a date")
	}

	_, ok, err = NextBillingDate(date(2024, time.March, 1), BillingAttributes{Period: BILLING_PERIOD_DAILY, Frequency: -2}, 0, 0)
	if err == nil || ok {
		t.Errorf("negative frequency must be a configuration error, ok=%v err=%v", ok, err)
	}
}

func TestNextBillingDate_DaysToSubtract(t *testing.T) {
	attrs := BillingAttributes{Period: BILLING_PERIOD_MONTHLY, Frequency: 1}
	got, ok, err := NextBillingDate(date(2024, time.March, 10), attrs, 0, 3)
	if err != nil || !ok {
		t.Fatalf("err=%v ok=%v", err, ok)
	}
	want := date(2024, time.April, 7)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSkipNextPaymentDate(t *testing.T) {
	tests := []struct {
		name      string
		period    BillingPeriod
		frequency int
		from      time.Time
		want      time.Time
	}{
		{"monthly", BILLING_PERIOD_MONTHLY, 1, date(2024, time.March, 10), date(2024, time.April, 10)},
		{"semi-month uses fixed 15 days", BILLING_PERIOD_SEMI_MONTHLY, 1, date(2024, time.March, 10), date(2024, time.March, 25)},
		{"weekly freq 2", BILLING_PERIOD_WEEKLY, 2, date(2024, time.March, 10), date(2024, time.March, 24)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := BillingAttributes{Period: tt.period, Frequency: tt.frequency}
			got, err := SkipNextPaymentDate(tt.from, attrs)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := SkipNextPaymentDate(date(2024, time.March, 10), BillingAttributes{Period: BILLING_PERIOD_MONTHLY, Frequency: FrequencyLifetime}); err == nil {
		t.Error("lifetime series has nothing to skip")
	}
}

func TestSkipAgreesWithSchedule(t *testing.T) {
	// Both paths must use the same interval arithmetic for every period.
	from := date(2024, time.January, 31)
	periods := []BillingPeriod{
		BILLING_PERIOD_DAILY,
		BILLING_PERIOD_WEEKLY,
		BILLING_PERIOD_SEMI_MONTHLY,
		BILLING_PERIOD_MONTHLY,
		BILLING_PERIOD_ANNUAL,
	}
	for _, period := range periods {
		attrs := BillingAttributes{Period: period, Frequency: 1}
		scheduled, ok, err := NextBillingDate(from, attrs, 0, 0)
		if err != nil || !ok {
			t.Fatalf("%s: err=%v ok=%v", period, err, ok)
		}
		skipped, err := SkipNextPaymentDate(from, attrs)
		if err != nil {
			t.Fatalf("%s: %v", period, err)
		}
		if !scheduled.Equal(skipped) {
			t.Errorf("%s: schedule %v != skip %v", period, scheduled, skipped)
		}
	}
}

func TestAddClampedDate_DayOverflowRolls(t *testing.T) {
	got := AddClampedDate(date(2024, time.March, 31), 0, 0, 5)
	want := date(2024, time.April, 5)
	if !got.Equal(want) {
		t.Errorf("day arithmetic must roll over months: got %v, want %v", got, want)
	}
}
