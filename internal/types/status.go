package types

// Status is a type for the lifecycle status of a resource row in the database.
// This is distinct from ScheduleStatus which tracks a billing attempt.
// Any changes to this type should be reflected in the database schema by running migrations
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDeleted  Status = "deleted"
)
