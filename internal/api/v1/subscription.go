package v1

import (
	"net/http"

	"github.com/cartloop/recurbill/internal/api/dto"
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/logger"
	"github.com/cartloop/recurbill/internal/service"
	"github.com/cartloop/recurbill/internal/types"
	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	service service.SubscriptionService
	log     *logger.Logger
}

func NewSubscriptionHandler(service service.SubscriptionService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{service: service, log: log}
}

func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	var req dto.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	resp, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	var filter types.SubscriptionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid query parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.List(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SubscriptionHandler) UpdatePaymentStatus(c *gin.Context) {
	var req dto.UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	ok, err := h.service.UpdatePaymentStatus(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(err)
		return
	}
	if !ok {
		// owner mismatch or concurrent transition; no write happened
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	var req struct {
		Reason           string `json:"reason"`
		CallerCustomerID string `json:"caller_customer_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	ok, err := h.service.Cancel(c.Request.Context(), c.Param("id"), req.Reason, req.CallerCustomerID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": ok})
}

func (h *SubscriptionHandler) ReactivateSubscription(c *gin.Context) {
	resp, err := h.service.Reactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SubscriptionHandler) SkipNextPayment(c *gin.Context) {
	var req struct {
		CallerCustomerID string `json:"caller_customer_id"`
	}
	// body is optional for internal invocations
	_ = c.ShouldBindJSON(&req)

	resp, err := h.service.SkipNextPayment(c.Request.Context(), c.Param("id"), req.CallerCustomerID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SubscriptionHandler) GetFailureCount(c *gin.Context) {
	count, err := h.service.FailureCount(c.Request.Context(), c.Param("lineage_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"failure_count": count})
}
