package email

import (
	"context"
	"fmt"

	"github.com/cartloop/recurbill/internal/config"
	"github.com/cartloop/recurbill/internal/logger"
)

// Sender is the outbound notification contract used by the billing services.
// All sends are fire-and-forget: a delivery failure is logged and swallowed,
// never surfaced to billing flows.
type Sender interface {
	SendEmail(ctx context.Context, req SendEmailRequest) (*SendEmailResponse, error)

	// NotifyChargeFailed alerts a customer that their recurring charge failed
	// and links them to their payment settings.
	NotifyChargeFailed(ctx context.Context, toAddress, productName, reason string)

	// NotifyCancelled alerts a customer that their subscription was cancelled.
	NotifyCancelled(ctx context.Context, toAddress, productName, reason string)

	// NotifyGatewayError alerts the configured admin address.
	NotifyGatewayError(ctx context.Context, subject, body string)
}

// Email handles email operations
type Email struct {
	client *EmailClient
	cfg    *config.Configuration
	logger *logger.Logger
}

// NewEmail creates a new email service
func NewEmail(client *EmailClient, cfg *config.Configuration, log *logger.Logger) Sender {
	return &Email{
		client: client,
		cfg:    cfg,
		logger: log,
	}
}

// SendEmail sends a plain text email
func (s *Email) SendEmail(ctx context.Context, req SendEmailRequest) (*SendEmailResponse, error) {
	if !s.client.IsEnabled() {
		s.logger.Warnw("email client is disabled, skipping email send",
			"to", req.ToAddress,
			"subject", req.Subject,
		)
		return &SendEmailResponse{
			Success: false,
			Error:   "email client is disabled",
		}, nil
	}

	fromAddress := req.FromAddress
	if fromAddress == "" {
		fromAddress = s.client.GetFromAddress()
	}

	messageID, err := s.client.SendEmail(ctx, fromAddress, req.ToAddress, req.Subject, req.Text)
	if err != nil {
		s.logger.Errorw("failed to send email",
			"error", err,
			"to", req.ToAddress,
			"subject", req.Subject,
		)
		return &SendEmailResponse{
			Success: false,
			Error:   err.Error(),
		}, err
	}

	s.logger.Infow("email sent",
		"message_id", messageID,
		"to", req.ToAddress,
		"subject", req.Subject,
	)

	return &SendEmailResponse{
		MessageID: messageID,
		Success:   true,
	}, nil
}

func (s *Email) NotifyChargeFailed(ctx context.Context, toAddress, productName, reason string) {
	if toAddress == "" {
		return
	}
	body := fmt.Sprintf(
		"Your recurring payment for %s could not be processed: %s\n\n"+
			"Please update your payment method here: %s\n",
		productName, reason, s.cfg.Email.AccountURL,
	)
	s.send(ctx, toAddress, fmt.Sprintf("Payment failed for %s", productName), body)
}

func (s *Email) NotifyCancelled(ctx context.Context, toAddress, productName, reason string) {
	if toAddress == "" {
		return
	}
	body := fmt.Sprintf(
		"Your subscription for %s has been cancelled: %s\n\n"+
			"You can manage your subscriptions here: %s\n",
		productName, reason, s.cfg.Email.AccountURL,
	)
	s.send(ctx, toAddress, fmt.Sprintf("Subscription cancelled: %s", productName), body)
}

func (s *Email) NotifyGatewayError(ctx context.Context, subject, body string) {
	if s.cfg.Email.AdminAddress == "" {
		return
	}
	s.send(ctx, s.cfg.Email.AdminAddress, subject, body)
}

func (s *Email) send(ctx context.Context, to, subject, body string) {
	// fire-and-forget: errors are already logged inside SendEmail
	_, _ = s.SendEmail(ctx, SendEmailRequest{
		ToAddress: to,
		Subject:   subject,
		Text:      body,
	})
}
