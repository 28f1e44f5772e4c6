package testutil

import (
	"context"
	"time"

	"github.com/cartloop/recurbill/internal/domain/paymentmethod"
	ierr "github.com/cartloop/recurbill/internal/errors"
)

// InMemoryPaymentMethodStore implements paymentmethod.Repository
type InMemoryPaymentMethodStore struct {
	*InMemoryStore[*paymentmethod.PaymentMethod]
}

func NewInMemoryPaymentMethodStore() *InMemoryPaymentMethodStore {
	return &InMemoryPaymentMethodStore{
		InMemoryStore: NewInMemoryStore[*paymentmethod.PaymentMethod](),
	}
}

func copyPaymentMethod(pm *paymentmethod.PaymentMethod) *paymentmethod.PaymentMethod {
	if pm == nil {
		return nil
	}
	out := *pm
	return &out
}

func (s *InMemoryPaymentMethodStore) Create(ctx context.Context, pm *paymentmethod.PaymentMethod) error {
	return s.InMemoryStore.Create(ctx, pm.ID, copyPaymentMethod(pm))
}

func (s *InMemoryPaymentMethodStore) Get(ctx context.Context, id string) (*paymentmethod.PaymentMethod, error) {
	pm, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyPaymentMethod(pm), nil
}

func (s *InMemoryPaymentMethodStore) Update(ctx context.Context, pm *paymentmethod.PaymentMethod) error {
	pm.UpdatedAt = time.Now().UTC()
	return s.InMemoryStore.Update(ctx, pm.ID, copyPaymentMethod(pm))
}

func (s *InMemoryPaymentMethodStore) ListByCustomer(ctx context.Context, customerID string) ([]*paymentmethod.PaymentMethod, error) {
	filterFn := func(ctx context.Context, pm *paymentmethod.PaymentMethod, _ interface{}) bool {
		return pm.CustomerID == customerID && !pm.Deleted
	}
	sortFn := func(i, j *paymentmethod.PaymentMethod) bool {
		if i.Primary != j.Primary {
			return i.Primary
		}
		return i.CreatedAt.Before(j.CreatedAt)
	}

	pms, err := s.InMemoryStore.List(ctx, nil, filterFn, sortFn)
	if err != nil {
		return nil, err
	}
	out := make([]*paymentmethod.PaymentMethod, 0, len(pms))
	for _, pm := range pms {
		out = append(out, copyPaymentMethod(pm))
	}
	return out, nil
}

func (s *InMemoryPaymentMethodStore) GetPrimary(ctx context.Context, customerID string) (*paymentmethod.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, pm := range s.items {
		if pm.CustomerID == customerID && pm.Primary && !pm.Deleted {
			return copyPaymentMethod(pm), nil
		}
	}
	return nil, ierr.NewError("no primary payment method").
		WithHint("Customer has no default payment method").
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryPaymentMethodStore) SetPrimary(ctx context.Context, customerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, exists := s.items[id]
	if !exists || target.CustomerID != customerID || target.Deleted {
		return notFound()
	}

	for _, pm := range s.items {
		if pm.CustomerID == customerID {
			pm.Primary = false
		}
	}
	target.Primary = true
	return nil
}

func (s *InMemoryPaymentMethodStore) SoftDelete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pm, exists := s.items[id]
	if !exists {
		return notFound()
	}
	pm.Deleted = true
	pm.Primary = false
	pm.UpdatedAt = time.Now().UTC()
	return nil
}
