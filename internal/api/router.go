package api

import (
	"github.com/cartloop/recurbill/internal/api/cron"
	v1 "github.com/cartloop/recurbill/internal/api/v1"
	"github.com/cartloop/recurbill/internal/rest/middleware"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Health        *v1.HealthHandler
	Customer      *v1.CustomerHandler
	PaymentMethod *v1.PaymentMethodHandler
	Subscription  *v1.SubscriptionHandler

	CronSubscription *cron.SubscriptionHandler
}

func NewRouter(handlers Handlers) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.ErrorHandler(),
	)

	router.GET("/health", handlers.Health.Health)

	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	cronGroup := router.Group("/cron")
	registerCronRoutes(cronGroup, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	customers := router.Group("/customers")
	{
		customers.POST("", handlers.Customer.CreateCustomer)
		customers.GET("/:id", handlers.Customer.GetCustomer)
	}

	paymentMethods := router.Group("/payment-methods")
	{
		paymentMethods.POST("", handlers.PaymentMethod.CreatePaymentMethod)
		paymentMethods.GET("", handlers.PaymentMethod.ListPaymentMethods)
		paymentMethods.GET("/:id", handlers.PaymentMethod.GetPaymentMethod)
		paymentMethods.POST("/:id/primary", handlers.PaymentMethod.SetPrimaryPaymentMethod)
		paymentMethods.DELETE("/:id", handlers.PaymentMethod.DeletePaymentMethod)
	}

	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("", handlers.Subscription.CreateSubscription)
		subscriptions.GET("", handlers.Subscription.ListSubscriptions)
		subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
		subscriptions.POST("/:id/status", handlers.Subscription.UpdatePaymentStatus)
		subscriptions.POST("/:id/cancel", handlers.Subscription.CancelSubscription)
		subscriptions.POST("/:id/reactivate", handlers.Subscription.ReactivateSubscription)
		subscriptions.POST("/:id/skip", handlers.Subscription.SkipNextPayment)
		subscriptions.GET("/lineage/:lineage_id/failures", handlers.Subscription.GetFailureCount)
	}
}

func registerCronRoutes(router *gin.RouterGroup, handlers Handlers) {
	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("/charge-due", handlers.CronSubscription.ChargeDueSubscriptions)
	}
}
