package middleware

import (
	"context"

	"github.com/cartloop/recurbill/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func RequestIDMiddleware(c *gin.Context) {
	ctx := c.Request.Context()

	requestID := c.GetHeader(types.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	ctx = context.WithValue(ctx, types.CtxRequestID, requestID)

	// the caller-asserted customer id feeds the ownership check's context
	// fallback; it is never trusted on its own
	if customerID := c.GetHeader(types.HeaderCustomerID); customerID != "" {
		ctx = context.WithValue(ctx, types.CtxCustomerID, customerID)
	}

	c.Request = c.Request.WithContext(ctx)
	c.Header(types.HeaderRequestID, requestID)

	c.Next()
}
