package subscription

import (
	"context"
	"time"

	"github.com/cartloop/recurbill/internal/types"
)

type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	List(ctx context.Context, filter *types.SubscriptionFilter) ([]*Subscription, error)

	// ListDue returns scheduled rows due on or before the given date,
	// oldest first. The cron charging loop iterates over these serially.
	ListDue(ctx context.Context, asOf time.Time) ([]*Subscription, error)

	// TransitionStatus flips a row from one status to another inside a single
	// transaction using a compare-and-set on the current status and version.
	// It returns false without error when the row was not in the expected
	// state, which means another invocation got there first.
	TransitionStatus(ctx context.Context, id string, from, to types.ScheduleStatus, comment string) (bool, error)

	// UpdateSnapshot persists the billing attribute snapshot back onto the
	// row after a successful resolution from a live order line.
	UpdateSnapshot(ctx context.Context, id string, snapshot *AttributeSnapshot) error

	// CompletedCycleCount counts complete rows in a lineage.
	CompletedCycleCount(ctx context.Context, lineageID string) (int, error)

	// FailureCountSinceLastComplete counts failed rows since the most recent
	// complete row in the same lineage. Feeds the surrounding dunning policy.
	FailureCountSinceLastComplete(ctx context.Context, lineageID string) (int, error)
}
