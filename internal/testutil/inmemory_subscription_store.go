package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/cartloop/recurbill/internal/domain/subscription"
	"github.com/cartloop/recurbill/internal/types"
	"github.com/samber/lo"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
	}
}

func copySubscription(sub *subscription.Subscription) *subscription.Subscription {
	if sub == nil {
		return nil
	}
	out := *sub
	if sub.Snapshot != nil {
		snapshot := *sub.Snapshot
		out.Snapshot = &snapshot
	}
	if sub.OrderLineID != nil {
		id := *sub.OrderLineID
		out.OrderLineID = &id
	}
	if sub.TransactionID != nil {
		id := *sub.TransactionID
		out.TransactionID = &id
	}
	return &out
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	return s.InMemoryStore.Create(ctx, sub.ID, copySubscription(sub))
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copySubscription(sub), nil
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	sub.UpdatedAt = time.Now().UTC()
	sub.Version++
	return s.InMemoryStore.Update(ctx, sub.ID, copySubscription(sub))
}

func (s *InMemorySubscriptionStore) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	filterFn := func(ctx context.Context, sub *subscription.Subscription, _ interface{}) bool {
		if filter == nil {
			return true
		}
		if filter.CustomerID != "" && sub.CustomerID != filter.CustomerID {
			return false
		}
		if filter.LineageID != "" && sub.LineageID != filter.LineageID {
			return false
		}
		if len(filter.ScheduleStatus) > 0 && !lo.Contains(filter.ScheduleStatus, sub.ScheduleStatus) {
			return false
		}
		if filter.DueBefore != nil && sub.ScheduledAt.After(*filter.DueBefore) {
			return false
		}
		return true
	}
	sortFn := func(i, j *subscription.Subscription) bool {
		if !i.ScheduledAt.Equal(j.ScheduledAt) {
			return i.ScheduledAt.Before(j.ScheduledAt)
		}
		return i.CreatedAt.Before(j.CreatedAt)
	}

	subs, err := s.InMemoryStore.List(ctx, filter, filterFn, sortFn)
	if err != nil {
		return nil, err
	}
	out := make([]*subscription.Subscription, 0, len(subs))
	for _, sub := range subs {
		out = append(out, copySubscription(sub))
	}
	if filter != nil && filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *InMemorySubscriptionStore) ListDue(ctx context.Context, asOf time.Time) ([]*subscription.Subscription, error) {
	return s.List(ctx, &types.SubscriptionFilter{
		ScheduleStatus: []types.ScheduleStatus{types.ScheduleStatusScheduled},
		DueBefore:      &asOf,
	})
}

func (s *InMemorySubscriptionStore) TransitionStatus(ctx context.Context, id string, from, to types.ScheduleStatus, comment string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, exists := s.items[id]
	if !exists {
		return false, notFound()
	}
	if sub.ScheduleStatus != from {
		return false, nil
	}

	sub.ScheduleStatus = to
	if comment != "" && !sub.HasComment(comment) {
		sub.AppendComment(comment)
	}
	sub.Version++
	sub.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *InMemorySubscriptionStore) UpdateSnapshot(ctx context.Context, id string, snapshot *subscription.AttributeSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, exists := s.items[id]
	if !exists {
		return notFound()
	}
	if snapshot != nil {
		copied := *snapshot
		sub.Snapshot = &copied
	} else {
		sub.Snapshot = nil
	}
	sub.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemorySubscriptionStore) CompletedCycleCount(ctx context.Context, lineageID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, sub := range s.items {
		if sub.LineageID == lineageID && sub.ScheduleStatus == types.ScheduleStatusComplete {
			count++
		}
	}
	return count, nil
}

func (s *InMemorySubscriptionStore) FailureCountSinceLastComplete(ctx context.Context, lineageID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []*subscription.Subscription
	for _, sub := range s.items {
		if sub.LineageID == lineageID {
			rows = append(rows, sub)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})

	count := 0
	for _, sub := range rows {
		switch sub.ScheduleStatus {
		case types.ScheduleStatusComplete:
			count = 0
		case types.ScheduleStatusFailed:
			count++
		}
	}
	return count, nil
}
