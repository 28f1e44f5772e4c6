package paypal

import (
	"context"
	"testing"

	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type newStyleClient struct{ method string }

func (c *newStyleClient) CaptureOrder(context.Context, string) (*OrderResponse, error) {
	c.method = "CaptureOrder"
	return &OrderResponse{ID: "ORD-1", Status: "COMPLETED"}, nil
}

func (c *newStyleClient) Capture(context.Context, string) (*OrderResponse, error) {
	c.method = "Capture"
	return &OrderResponse{ID: "ORD-1", Status: "COMPLETED"}, nil
}

func (c *newStyleClient) AuthorizeOrder(context.Context, string) (*OrderResponse, error) {
	c.method = "AuthorizeOrder"
	return &OrderResponse{ID: "ORD-1", Status: "COMPLETED"}, nil
}

type oldStyleClient struct{ method string }

func (c *oldStyleClient) Capture(context.Context, string) (*OrderResponse, error) {
	c.method = "Capture"
	return &OrderResponse{ID: "ORD-2", Status: "COMPLETED"}, nil
}

func (c *oldStyleClient) Authorize(context.Context, string) (*OrderResponse, error) {
	c.method = "Authorize"
	return &OrderResponse{ID: "ORD-2", Status: "COMPLETED"}, nil
}

func TestFinalizeOrder_PrefersNewerMethod(t *testing.T) {
	client := &newStyleClient{}

	resp, err := FinalizeOrder(context.Background(), client, types.PaymentIntentCapture, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", resp.Status)
	assert.Equal(t, "CaptureOrder", client.method, "CaptureOrder wins over Capture when both exist")
}

func TestFinalizeOrder_FallsBackToOlderMethod(t *testing.T) {
	client := &oldStyleClient{}

	_, err := FinalizeOrder(context.Background(), client, types.PaymentIntentCapture, "ORD-2")
	require.NoError(t, err)
	assert.Equal(t, "Capture", client.method)

	_, err = FinalizeOrder(context.Background(), client, types.PaymentIntentAuthorize, "ORD-2")
	require.NoError(t, err)
	assert.Equal(t, "Authorize", client.method)
}

func TestFinalizeOrder_NoCapability(t *testing.T) {
	_, err := FinalizeOrder(context.Background(), struct{}{}, types.PaymentIntentCapture, "ORD-3")
	require.Error(t, err)
	assert.True(t, ierr.IsMethodNotSupported(err))
}

func TestFinalizeOrder_InvalidIntent(t *testing.T) {
	_, err := FinalizeOrder(context.Background(), &newStyleClient{}, types.PaymentIntent("SALE"), "ORD-4")
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestExtractTransactionID(t *testing.T) {
	captured := &OrderResponse{
		ID: "ORD-5",
		PurchaseUnits: []PurchaseUnitResponse{
			{Payments: &Payments{Captures: []CapturedPayment{{ID: "CAP-5"}}}},
		},
	}
	assert.Equal(t, "CAP-5", ExtractTransactionID(captured, "FALLBACK"))

	authorized := &OrderResponse{
		ID: "ORD-6",
		PurchaseUnits: []PurchaseUnitResponse{
			{Payments: &Payments{Authorizations: []AuthorizedPayment{{ID: "AUTH-6"}}}},
		},
	}
	assert.Equal(t, "AUTH-6", ExtractTransactionID(authorized, "FALLBACK"))

	bare := &OrderResponse{ID: "ORD-7"}
	assert.Equal(t, "ORD-7", ExtractTransactionID(bare, "FALLBACK"))

	assert.Equal(t, "FALLBACK", ExtractTransactionID(nil, "FALLBACK"))
	assert.Equal(t, "FALLBACK", ExtractTransactionID(&OrderResponse{}, "FALLBACK"))
}
