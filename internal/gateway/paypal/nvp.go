package paypal

import (
	"context"
	"net/http"
	"net/url"

	"github.com/cartloop/recurbill/internal/config"
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/httpclient"
	"github.com/cartloop/recurbill/internal/logger"
	"github.com/shopspring/decimal"
)

// LegacyProcessor is the contract of the legacy NVP back end. The historic
// call shape set transaction id and payment status as out-parameters on the
// client object; here they come back as a result value.
type LegacyProcessor interface {
	Process(ctx context.Context, action, reference string, amount decimal.Decimal, currency string) (*NVPResult, error)
}

// NVPResult carries the legacy API's response fields
type NVPResult struct {
	Ack           string
	TransactionID string
	PaymentStatus string
	ErrorMessage  string
}

// Succeeded reports whether the legacy call was acknowledged
func (r *NVPResult) Succeeded() bool {
	return r != nil && (r.Ack == "Success" || r.Ack == "SuccessWithWarning")
}

// NVPClient implements LegacyProcessor against the name-value-pair endpoint
type NVPClient struct {
	endpoint  string
	user      string
	password  string
	signature string
	http      httpclient.Client
	logger    *logger.Logger
}

// NewNVPClient creates a legacy NVP client from configuration
func NewNVPClient(cfg *config.Configuration, http httpclient.Client, log *logger.Logger) *NVPClient {
	return &NVPClient{
		endpoint:  cfg.PayPal.NVPEndpoint,
		user:      cfg.PayPal.NVPUser,
		password:  cfg.PayPal.NVPPassword,
		signature: cfg.PayPal.NVPSignature,
		http:      http,
		logger:    log,
	}
}

// nvpAPIVersion is the last NVP version this integration was certified on
const nvpAPIVersion = "204.0"

// Process runs a reference transaction against the stored billing agreement.
// action is the payment action, e.g. "Sale".
func (c *NVPClient) Process(ctx context.Context, action, reference string, amount decimal.Decimal, currency string) (*NVPResult, error) {
	form := url.Values{
		"METHOD":        {"DoReferenceTransaction"},
		"VERSION":       {nvpAPIVersion},
		"USER":          {c.user},
		"PWD":           {c.password},
		"SIGNATURE":     {c.signature},
		"REFERENCEID":   {reference},
		"PAYMENTACTION": {action},
		"AMT":           {amount.StringFixed(2)},
		"CURRENCYCODE":  {currency},
	}

	resp, err := c.http.Send(ctx, &httpclient.Request{
		Method: http.MethodPost,
		URL:    c.endpoint,
		Headers: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
		},
		Body: []byte(form.Encode()),
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Legacy gateway request failed").
			Mark(ierr.ErrGateway)
	}

	values, err := url.ParseQuery(string(resp.Body))
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Legacy gateway response was not parseable").
			Mark(ierr.ErrGateway)
	}

	result := &NVPResult{
		Ack:           values.Get("ACK"),
		TransactionID: values.Get("TRANSACTIONID"),
		PaymentStatus: values.Get("PAYMENTSTATUS"),
		ErrorMessage:  values.Get("L_LONGMESSAGE0"),
	}

	if !result.Succeeded() {
		c.logger.Warnw("legacy gateway declined transaction",
			"ack", result.Ack,
			"reference", reference,
			"message", result.ErrorMessage,
		)
	}

	return result, nil
}
