package types

import (
	"time"

	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/samber/lo"
)

// ScheduleStatus is the status of a single scheduled billing attempt.
// scheduled is re-entrant: a completed cycle that renews creates a new
// scheduled row. complete and failed are per-attempt terminal markers;
// cancelled ends the subscription lineage.
type ScheduleStatus string

const (
	ScheduleStatusScheduled ScheduleStatus = "scheduled"
	ScheduleStatusComplete  ScheduleStatus = "complete"
	ScheduleStatusFailed    ScheduleStatus = "failed"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
)

func (s ScheduleStatus) String() string {
	return string(s)
}

func (s ScheduleStatus) Validate() error {
	allowed := []ScheduleStatus{
		ScheduleStatusScheduled,
		ScheduleStatusComplete,
		ScheduleStatusFailed,
		ScheduleStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid schedule status").
			WithHint("Invalid schedule status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsTerminal reports whether the status marks the end of a billing attempt.
func (s ScheduleStatus) IsTerminal() bool {
	return s == ScheduleStatusComplete || s == ScheduleStatusFailed || s == ScheduleStatusCancelled
}

// SubscriptionFilter filters subscription queries
type SubscriptionFilter struct {
	// CustomerID filters by owning customer
	CustomerID string `json:"customer_id,omitempty" form:"customer_id"`

	// ScheduleStatus filters by schedule status
	ScheduleStatus []ScheduleStatus `json:"schedule_status,omitempty" form:"schedule_status"`

	// DueBefore filters subscriptions scheduled on or before the given date
	DueBefore *time.Time `json:"due_before,omitempty" form:"due_before"`

	// LineageID filters rows belonging to one subscription lineage
	LineageID string `json:"lineage_id,omitempty" form:"lineage_id"`

	// Limit caps the number of returned rows; 0 means no cap
	Limit int `json:"limit,omitempty" form:"limit"`
}

func (f *SubscriptionFilter) Validate() error {
	for _, status := range f.ScheduleStatus {
		if err := status.Validate(); err != nil {
			return err
		}
	}
	if f.Limit < 0 {
		return ierr.NewError("invalid limit").
			WithHint("Limit cannot be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}
