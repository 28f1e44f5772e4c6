package testutil

import (
	"context"
	"sync"

	"github.com/cartloop/recurbill/internal/email"
)

// Notification records one outbound notification captured by the fake sender.
type Notification struct {
	Kind    string // "charge_failed", "cancelled", "gateway_error", "email"
	To      string
	Subject string
	Body    string
}

// FakeEmailSender implements email.Sender and records every notification.
type FakeEmailSender struct {
	mu            sync.Mutex
	Notifications []Notification
}

func NewFakeEmailSender() *FakeEmailSender {
	return &FakeEmailSender{}
}

func (f *FakeEmailSender) SendEmail(ctx context.Context, req email.SendEmailRequest) (*email.SendEmailResponse, error) {
	f.record(Notification{Kind: "email", To: req.ToAddress, Subject: req.Subject, Body: req.Text})
	return &email.SendEmailResponse{MessageID: "fake", Success: true}, nil
}

func (f *FakeEmailSender) NotifyChargeFailed(ctx context.Context, toAddress, productName, reason string) {
	f.record(Notification{Kind: "charge_failed", To: toAddress, Subject: productName, Body: reason})
}

func (f *FakeEmailSender) NotifyCancelled(ctx context.Context, toAddress, productName, reason string) {
	f.record(Notification{Kind: "cancelled", To: toAddress, Subject: productName, Body: reason})
}

func (f *FakeEmailSender) NotifyGatewayError(ctx context.Context, subject, body string) {
	f.record(Notification{Kind: "gateway_error", Subject: subject, Body: body})
}

func (f *FakeEmailSender) record(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Notifications = append(f.Notifications, n)
}

// ByKind returns recorded notifications of the given kind.
func (f *FakeEmailSender) ByKind(kind string) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Notification
	for _, n := range f.Notifications {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}
