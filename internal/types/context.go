package types

import (
	"context"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID  ContextKey = "ctx_request_id"
	CtxCustomerID ContextKey = "ctx_customer_id"
	CtxUserID     ContextKey = "ctx_user_id"

	HeaderRequestID  = "X-Request-ID"
	HeaderCustomerID = "X-Customer-ID"
)

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

// GetCustomerID returns the customer id of the current session, if any.
// Used as the last fallback when resolving a subscription's owner.
func GetCustomerID(ctx context.Context) string {
	if customerID, ok := ctx.Value(CtxCustomerID).(string); ok {
		return customerID
	}
	return ""
}

func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(CtxUserID).(string); ok {
		return userID
	}
	return ""
}

func SetCustomerID(ctx context.Context, customerID string) context.Context {
	return context.WithValue(ctx, CtxCustomerID, customerID)
}
