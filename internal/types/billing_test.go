package types

import (
	"testing"
)

func TestParseBillingPeriod(t *testing.T) {
	tests := []struct {
		raw  string
		want BillingPeriod
	}{
		{"Month", BILLING_PERIOD_MONTHLY},
		{"monthly", BILLING_PERIOD_MONTHLY},
		{"Day", BILLING_PERIOD_DAILY},
		{"daily", BILLING_PERIOD_DAILY},
		{"Week", BILLING_PERIOD_WEEKLY},
		{"Bi-Weekly", BILLING_PERIOD_SEMI_MONTHLY},
		{"Semi-Month", BILLING_PERIOD_SEMI_MONTHLY},
		{"SemiMonthly", BILLING_PERIOD_SEMI_MONTHLY},
		{"Year", BILLING_PERIOD_ANNUAL},
		{"Yearly", BILLING_PERIOD_ANNUAL},
		{" month ", BILLING_PERIOD_MONTHLY},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseBillingPeriod(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseBillingPeriod_Unknown(t *testing.T) {
	for _, raw := range []string{"", "fortnight", "30"} {
		if _, err := ParseBillingPeriod(raw); err == nil {
			t.Errorf("%q: expected error", raw)
		}
	}
}

func TestParseBillingFrequency(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"1", 1},
		{"12", 12},
		{"Lifetime", FrequencyLifetime},
		{"Quarterly", 3},
		{"Monthly", 1},
		{"30 Days", 1},
		{"365 Days", 12}, // legacy data-entry mapping, kept for existing rows
		{" 6 ", 6},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseBillingFrequency(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseBillingFrequency_Invalid(t *testing.T) {
	for _, raw := range []string{"", "abc", "-3", "0"} {
		if _, err := ParseBillingFrequency(raw); err == nil {
			t.Errorf("%q: expected error", raw)
		}
	}
}

func TestNormalizeAttributeKey(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Billing Period", "billingperiod"},
		{"billing-frequency", "billingfrequency"},
		{" Total Billing Cycles ", "totalbillingcycles"},
		{"DOMAIN", "domain"},
	}
	for _, tt := range tests {
		if got := NormalizeAttributeKey(tt.raw); got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.raw, got, tt.want)
		}
	}
}
