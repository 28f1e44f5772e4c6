package service

import (
	"github.com/cartloop/recurbill/internal/cache"
	"github.com/cartloop/recurbill/internal/config"
	"github.com/cartloop/recurbill/internal/domain/customer"
	"github.com/cartloop/recurbill/internal/domain/orderline"
	"github.com/cartloop/recurbill/internal/domain/paymentmethod"
	"github.com/cartloop/recurbill/internal/domain/subscription"
	"github.com/cartloop/recurbill/internal/email"
	"github.com/cartloop/recurbill/internal/gateway"
	"github.com/cartloop/recurbill/internal/logger"
	"github.com/cartloop/recurbill/internal/postgres"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Cache  cache.Cache

	SubRepo           subscription.Repository
	PaymentMethodRepo paymentmethod.Repository
	CustomerRepo      customer.Repository
	OrderLineRepo     orderline.Repository

	Gateway gateway.Gateway
	Email   email.Sender
}

func NewServiceParams(
	logger *logger.Logger,
	cfg *config.Configuration,
	db postgres.IClient,
	cacheClient cache.Cache,
	subRepo subscription.Repository,
	paymentMethodRepo paymentmethod.Repository,
	customerRepo customer.Repository,
	orderLineRepo orderline.Repository,
	gw gateway.Gateway,
	sender email.Sender,
) ServiceParams {
	return ServiceParams{
		Logger:            logger,
		Config:            cfg,
		DB:                db,
		Cache:             cacheClient,
		SubRepo:           subRepo,
		PaymentMethodRepo: paymentMethodRepo,
		CustomerRepo:      customerRepo,
		OrderLineRepo:     orderLineRepo,
		Gateway:           gw,
		Email:             sender,
	}
}
