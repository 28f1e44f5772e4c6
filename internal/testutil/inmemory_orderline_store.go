package testutil

import (
	"context"

	"github.com/cartloop/recurbill/internal/domain/orderline"
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/types"
)

// InMemoryOrderLineStore implements orderline.Repository
type InMemoryOrderLineStore struct {
	*InMemoryStore[*orderline.OrderLine]
}

func NewInMemoryOrderLineStore() *InMemoryOrderLineStore {
	return &InMemoryOrderLineStore{
		InMemoryStore: NewInMemoryStore[*orderline.OrderLine](),
	}
}

func copyOrderLine(ol *orderline.OrderLine) *orderline.OrderLine {
	if ol == nil {
		return nil
	}
	out := *ol
	out.Attributes = append([]orderline.Attribute(nil), ol.Attributes...)
	return &out
}

// Add seeds an order line for tests.
func (s *InMemoryOrderLineStore) Add(ctx context.Context, ol *orderline.OrderLine) error {
	return s.InMemoryStore.Create(ctx, ol.ID, copyOrderLine(ol))
}

// Remove marks an order line deleted, simulating the source order removal.
func (s *InMemoryOrderLineStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ol, exists := s.items[id]
	if !exists {
		return notFound()
	}
	ol.BaseModel.Status = types.StatusDeleted
	return nil
}

func (s *InMemoryOrderLineStore) GetWithAttributes(ctx context.Context, id string) (*orderline.OrderLine, error) {
	ol, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ol.BaseModel.Status == types.StatusDeleted {
		return nil, ierr.NewError("order line not found").
			WithHint("Order line missing or deleted").
			Mark(ierr.ErrNotFound)
	}
	return copyOrderLine(ol), nil
}
