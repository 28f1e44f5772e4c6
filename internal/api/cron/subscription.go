package cron

import (
	"net/http"
	"time"

	"github.com/cartloop/recurbill/internal/logger"
	"github.com/cartloop/recurbill/internal/service"
	"github.com/gin-gonic/gin"
)

// SubscriptionHandler handles subscription related cron jobs
type SubscriptionHandler struct {
	subscriptionService service.SubscriptionService
	logger              *logger.Logger
}

// NewSubscriptionHandler creates a new subscription cron handler
func NewSubscriptionHandler(subscriptionService service.SubscriptionService, logger *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
		logger:              logger,
	}
}

// ChargeDueSubscriptions charges every subscription due today, serially.
// Invoked by the external cron scheduler.
func (h *SubscriptionHandler) ChargeDueSubscriptions(c *gin.Context) {
	h.logger.Infow("starting due-subscription charge run")

	asOf := time.Now().UTC()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "as_of must be YYYY-MM-DD"})
			return
		}
		asOf = parsed
	}

	summary, err := h.subscriptionService.ChargeDue(c.Request.Context(), asOf)
	if err != nil {
		h.logger.Errorw("charge run failed", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
