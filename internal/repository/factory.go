package repository

import (
	"github.com/cartloop/recurbill/internal/domain/customer"
	"github.com/cartloop/recurbill/internal/domain/orderline"
	"github.com/cartloop/recurbill/internal/domain/paymentmethod"
	"github.com/cartloop/recurbill/internal/domain/subscription"
	"github.com/cartloop/recurbill/internal/logger"
	"github.com/cartloop/recurbill/internal/postgres"
	"go.uber.org/fx"
)

// RepositoryParams holds common dependencies for repositories
type RepositoryParams struct {
	fx.In

	DB     postgres.IClient
	Logger *logger.Logger
}

func NewRepositories(p RepositoryParams) (
	subscription.Repository,
	paymentmethod.Repository,
	customer.Repository,
	orderline.Repository,
) {
	return NewSubscriptionRepository(p.DB, p.Logger),
		NewPaymentMethodRepository(p.DB, p.Logger),
		NewCustomerRepository(p.DB, p.Logger),
		NewOrderLineRepository(p.DB, p.Logger)
}
