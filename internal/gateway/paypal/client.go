package paypal

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cartloop/recurbill/internal/config"
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/httpclient"
	"github.com/cartloop/recurbill/internal/logger"
	"github.com/cartloop/recurbill/internal/types"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client talks to the vendor REST orders API. It implements OrderCreator,
// CaptureOrderer and AuthorizeOrderer; older client generations implementing
// only Capture/Authorize remain chargeable through the capability probe.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         httpclient.Client
	logger       *logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a REST client from configuration
func NewClient(cfg *config.Configuration, http httpclient.Client, log *logger.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.PayPal.RESTBaseURL, "/"),
		clientID:     cfg.PayPal.ClientID,
		clientSecret: cfg.PayPal.ClientSecret,
		http:         http,
		logger:       log,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a cached OAuth access token, fetching a fresh one via the
// client-credentials grant when the cached token is missing or near expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-1*time.Minute)) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))

	resp, err := c.http.Send(ctx, &httpclient.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + "/v1/oauth2/token",
		Headers: map[string]string{
			"Authorization": "Basic " + basic,
			"Content-Type":  "application/x-www-form-urlencoded",
		},
		Body: []byte(form.Encode()),
	})
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to authenticate with the payment gateway").
			Mark(ierr.ErrGateway)
	}

	var tok tokenResponse
	if err := json.Unmarshal(resp.Body, &tok); err != nil {
		return "", ierr.WithError(err).
			WithHint("Gateway token response was not valid JSON").
			Mark(ierr.ErrGateway)
	}
	if tok.AccessToken == "" {
		return "", ierr.NewError("empty access token").
			WithHint("Gateway returned no access token").
			Mark(ierr.ErrGateway)
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

func (c *Client) post(ctx context.Context, path, requestID string, body any) (*OrderResponse, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to serialize gateway request").
				Mark(ierr.ErrSystem)
		}
	}

	headers := map[string]string{
		"Authorization": "Bearer " + token,
		"Content-Type":  "application/json",
	}
	if requestID != "" {
		// vendor-side idempotency key: a retried create with the same id
		// returns the original order instead of a duplicate
		headers["PayPal-Request-Id"] = requestID
	}

	resp, err := c.http.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + path,
		Headers: headers,
		Body:    payload,
	})
	if err != nil {
		if httpErr, ok := httpclient.IsHTTPError(err); ok {
			c.logger.Errorw("gateway request rejected",
				"path", path,
				"status", httpErr.StatusCode,
				"response", string(httpErr.Response),
			)
		}
		return nil, ierr.WithError(err).
			WithHint("Payment gateway request failed").
			Mark(ierr.ErrGateway)
	}

	var order OrderResponse
	if err := json.Unmarshal(resp.Body, &order); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Gateway response was not valid JSON").
			Mark(ierr.ErrGateway)
	}
	return &order, nil
}

// CreateOrder creates a new order under a fresh idempotency key
func (c *Client) CreateOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error) {
	return c.post(ctx, "/v2/checkout/orders", types.GenerateShortIDWithPrefix("ch_"), req)
}

// CaptureOrder captures a created order. The order id itself keys the
// finalization, so no separate request id is sent.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*OrderResponse, error) {
	return c.post(ctx, fmt.Sprintf("/v2/checkout/orders/%s/capture", orderID), "", nil)
}

// AuthorizeOrder authorizes a created order
func (c *Client) AuthorizeOrder(ctx context.Context, orderID string) (*OrderResponse, error) {
	return c.post(ctx, fmt.Sprintf("/v2/checkout/orders/%s/authorize", orderID), "", nil)
}
