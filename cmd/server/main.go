package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cartloop/recurbill/internal/api"
	"github.com/cartloop/recurbill/internal/api/cron"
	v1 "github.com/cartloop/recurbill/internal/api/v1"
	"github.com/cartloop/recurbill/internal/cache"
	"github.com/cartloop/recurbill/internal/config"
	"github.com/cartloop/recurbill/internal/email"
	"github.com/cartloop/recurbill/internal/gateway"
	"github.com/cartloop/recurbill/internal/gateway/paypal"
	"github.com/cartloop/recurbill/internal/httpclient"
	"github.com/cartloop/recurbill/internal/logger"
	"github.com/cartloop/recurbill/internal/postgres"
	"github.com/cartloop/recurbill/internal/repository"
	"github.com/cartloop/recurbill/internal/service"
	"github.com/cartloop/recurbill/internal/types"
	"github.com/cartloop/recurbill/internal/validator"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Cache
			cache.Initialize,

			// Postgres
			postgres.NewClient,

			// HTTP Client
			httpclient.NewDefaultClient,

			// Email
			email.NewEmailClient,
			email.NewEmail,

			// Gateway
			paypal.NewClient,
			paypal.NewNVPClient,
			provideGateway,

			// Repositories
			repository.NewRepositories,
		),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,
			service.NewAttributeService,
			service.NewSubscriptionService,
			service.NewPaymentMethodService,
			service.NewCustomerService,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(startServer),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideGateway(
	cfg *config.Configuration,
	rest *paypal.Client,
	legacy *paypal.NVPClient,
	sender email.Sender,
	log *logger.Logger,
) gateway.Gateway {
	intent := types.PaymentIntent(cfg.PayPal.Intent)
	return gateway.NewAdapter(rest, legacy, intent, sender, log)
}

func provideHandlers(
	logger *logger.Logger,
	subscriptionService service.SubscriptionService,
	paymentMethodService service.PaymentMethodService,
	customerService service.CustomerService,
) api.Handlers {
	return api.Handlers{
		Health:           v1.NewHealthHandler(),
		Customer:         v1.NewCustomerHandler(customerService, logger),
		PaymentMethod:    v1.NewPaymentMethodHandler(paymentMethodService, logger),
		Subscription:     v1.NewSubscriptionHandler(subscriptionService, logger),
		CronSubscription: cron.NewSubscriptionHandler(subscriptionService, logger),
	}
}

func provideRouter(handlers api.Handlers) *gin.Engine {
	return api.NewRouter(handlers)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	db postgres.IClient,
	log *logger.Logger,
) {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting server", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			db.Close()
			return nil
		},
	})
}
