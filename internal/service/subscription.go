package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cartloop/recurbill/internal/api/dto"
	"github.com/cartloop/recurbill/internal/domain/subscription"
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/types"
	"github.com/cartloop/recurbill/internal/validator"
)

// commentMissingOrderLine is the idempotence token for automatic cancellation
// caused by a removed source order line. Re-cancelling never appends it twice.
const commentMissingOrderLine = "cancelled: source order line removed"

const commentNoUsableInstrument = "cancelled: no usable payment instrument"

// SubscriptionService is the lifecycle manager: it schedules billing
// attempts, runs the charging loop, and guards every status mutation with the
// owning-customer check.
type SubscriptionService interface {
	Create(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	Get(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	List(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error)

	// ChargeDue lists scheduled rows due on or before asOf and charges each
	// serially. Failures never stop the run.
	ChargeDue(ctx context.Context, asOf time.Time) (*dto.ChargeRunSummary, error)

	// ChargeOne runs one charge attempt against a scheduled subscription.
	ChargeOne(ctx context.Context, id string) (*dto.ChargeResult, error)

	// UpdatePaymentStatus transitions a subscription's schedule status. When
	// the request asserts a caller customer id that does not match the
	// subscription's resolved owner, it returns false with no error and
	// writes nothing.
	UpdatePaymentStatus(ctx context.Context, id string, req *dto.UpdatePaymentStatusRequest) (bool, error)

	// Cancel ends the subscription lineage. Idempotent.
	Cancel(ctx context.Context, id, reason, callerCustomerID string) (bool, error)

	// Reactivate re-validates a scheduled subscription's payment instrument
	// before its next billing. A deleted instrument is substituted with the
	// customer's current default; with no default the subscription is
	// cancelled outright.
	Reactivate(ctx context.Context, id string) (*dto.SubscriptionResponse, error)

	// SkipNextPayment pushes the scheduled date forward by one billing
	// interval without charging.
	SkipNextPayment(ctx context.Context, id, callerCustomerID string) (*dto.SubscriptionResponse, error)

	// FailureCount counts failed attempts since the last completed one in
	// the lineage, for the surrounding dunning policy.
	FailureCount(ctx context.Context, lineageID string) (int, error)
}

type subscriptionService struct {
	ServiceParams
	attrs AttributeService
}

func NewSubscriptionService(params ServiceParams, attrs AttributeService) SubscriptionService {
	return &subscriptionService{ServiceParams: params, attrs: attrs}
}

func (s *subscriptionService) Create(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.CustomerRepo.Get(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	pm, err := s.PaymentMethodRepo.Get(ctx, req.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	if !pm.Usable() {
		return nil, ierr.NewError("payment instrument not usable").
			WithHint("The payment method is deleted or carries no vendor token").
			Mark(ierr.ErrValidation)
	}
	if pm.CustomerID != req.CustomerID {
		return nil, ierr.NewError("payment instrument belongs to another customer").
			WithHint("Payment method does not belong to the subscribing customer").
			Mark(ierr.ErrPermissionDenied)
	}

	line, err := s.OrderLineRepo.GetWithAttributes(ctx, req.OrderLineID)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.attrs.SnapshotFromOrderLine(ctx, req.OrderLineID)
	if err != nil {
		return nil, err
	}
	applyDefaults(snapshot, req.Defaults)

	attrs, err := snapshot.ToBillingAttributes()
	if err != nil {
		return nil, err
	}
	if err := attrs.Validate(); err != nil {
		return nil, err
	}

	amount := req.Amount
	if amount.IsZero() {
		amount = line.Price
	}
	currency := req.Currency
	if currency == "" {
		currency = line.Currency
	}

	scheduledAt := types.DateOnly(time.Now().UTC())
	if req.StartDate != nil {
		scheduledAt = types.DateOnly(*req.StartDate)
		snapshot.StartDate = scheduledAt.Format("2006-01-02")
	}

	orderLineID := req.OrderLineID
	sub := &subscription.Subscription{
		ID:              types.GenerateUUIDWithPrefix(types.UUIDPrefixSubscription),
		LineageID:       types.GenerateUUIDWithPrefix(types.UUIDPrefixSubscription),
		CustomerID:      req.CustomerID,
		OrderLineID:     &orderLineID,
		PaymentMethodID: pm.ID,
		Amount:          amount,
		Currency:        currency,
		ScheduledAt:     scheduledAt,
		ScheduleStatus:  types.ScheduleStatusScheduled,
		Snapshot:        snapshot,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if err := s.SubRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("subscription scheduled",
		"subscription_id", sub.ID,
		"customer_id", sub.CustomerID,
		"scheduled_at", sub.ScheduledAt)
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) Get(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) List(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error) {
	if filter != nil {
		if err := filter.Validate(); err != nil {
			return nil, err
		}
	}
	subs, err := s.SubRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	resp := &dto.ListSubscriptionsResponse{
		Items: make([]*dto.SubscriptionResponse, 0, len(subs)),
		Total: len(subs),
	}
	for _, sub := range subs {
		resp.Items = append(resp.Items, &dto.SubscriptionResponse{Subscription: sub})
	}
	return resp, nil
}

func (s *subscriptionService) ChargeDue(ctx context.Context, asOf time.Time) (*dto.ChargeRunSummary, error) {
	due, err := s.SubRepo.ListDue(ctx, types.DateOnly(asOf))
	if err != nil {
		return nil, err
	}

	summary := &dto.ChargeRunSummary{}
	for _, sub := range due {
		result, err := s.ChargeOne(ctx, sub.ID)
		if err != nil {
			// attribute configuration errors stall the row; record and move on
			s.Logger.Errorw("charge attempt errored",
				"subscription_id", sub.ID,
				"error", err)
			summary.Processed++
			summary.Skipped++
			summary.Results = append(summary.Results, &dto.ChargeResult{
				SubscriptionID: sub.ID,
				Status:         sub.ScheduleStatus,
				Error:          err.Error(),
			})
			continue
		}
		summary.Processed++
		switch result.Status {
		case types.ScheduleStatusComplete:
			summary.Succeeded++
		case types.ScheduleStatusFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
		summary.Results = append(summary.Results, result)
	}

	s.Logger.Infow("charge run finished",
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped)
	return summary, nil
}

func (s *subscriptionService) ChargeOne(ctx context.Context, id string) (*dto.ChargeResult, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.ScheduleStatus != types.ScheduleStatusScheduled {
		return &dto.ChargeResult{
			SubscriptionID: sub.ID,
			Status:         sub.ScheduleStatus,
		}, nil
	}

	attrs, err := s.attrs.Resolve(ctx, sub, nil)
	if err != nil {
		if ierr.IsNotFound(err) {
			// the source order line is gone and the snapshot cannot bill
			if cancelErr := s.cancelForMissingOrderLine(ctx, sub); cancelErr != nil {
				return nil, cancelErr
			}
			return &dto.ChargeResult{
				SubscriptionID: sub.ID,
				Status:         types.ScheduleStatusCancelled,
				Error:          commentMissingOrderLine,
			}, nil
		}
		// malformed billing attributes: log and leave the row scheduled
		s.Logger.Errorw("billing attributes unresolvable, subscription stalled",
			"subscription_id", sub.ID,
			"error", err)
		return nil, err
	}

	pm, err := s.PaymentMethodRepo.Get(ctx, sub.PaymentMethodID)
	if err != nil || !pm.Usable() {
		reason := "payment instrument missing or deleted"
		if _, terr := s.SubRepo.TransitionStatus(ctx, sub.ID,
			types.ScheduleStatusScheduled, types.ScheduleStatusFailed, reason); terr != nil {
			return nil, terr
		}
		s.notifyChargeFailed(ctx, sub, attrs.Name, reason)
		return &dto.ChargeResult{
			SubscriptionID: sub.ID,
			Status:         types.ScheduleStatusFailed,
			Error:          reason,
		}, nil
	}

	outcome := s.Gateway.Charge(ctx, pm, sub.Amount, sub.Currency)
	if !outcome.Success {
		comment := fmt.Sprintf("charge failed: %s", outcome.Error)
		transitioned, terr := s.SubRepo.TransitionStatus(ctx, sub.ID,
			types.ScheduleStatusScheduled, types.ScheduleStatusFailed, comment)
		if terr != nil {
			return nil, terr
		}
		if transitioned {
			s.notifyChargeFailed(ctx, sub, attrs.Name, outcome.Error)
			s.checkDunning(ctx, sub)
		}
		return &dto.ChargeResult{
			SubscriptionID: sub.ID,
			Status:         types.ScheduleStatusFailed,
			Error:          outcome.Error,
		}, nil
	}

	comment := fmt.Sprintf("charged, transaction %s", outcome.TransactionID)
	transitioned, err := s.SubRepo.TransitionStatus(ctx, sub.ID,
		types.ScheduleStatusScheduled, types.ScheduleStatusComplete, comment)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		// another invocation completed this row while we were charging; the
		// gateway call already went through, so record and do not reschedule
		s.Logger.Warnw("concurrent completion detected after successful charge",
			"subscription_id", sub.ID,
			"transaction_id", outcome.TransactionID)
		return &dto.ChargeResult{
			SubscriptionID: sub.ID,
			Status:         types.ScheduleStatusComplete,
			TransactionID:  outcome.TransactionID,
		}, nil
	}

	completed, err := s.SubRepo.Get(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	completed.TransactionID = &outcome.TransactionID
	if err := s.SubRepo.Update(ctx, completed); err != nil {
		s.Logger.Errorw("failed to record transaction id",
			"subscription_id", sub.ID,
			"transaction_id", outcome.TransactionID,
			"error", err)
	}

	result := &dto.ChargeResult{
		SubscriptionID: sub.ID,
		Status:         types.ScheduleStatusComplete,
		TransactionID:  outcome.TransactionID,
	}

	next, err := s.scheduleNext(ctx, completed, attrs)
	if err != nil {
		s.Logger.Errorw("failed to schedule renewal",
			"subscription_id", sub.ID,
			"error", err)
		return result, nil
	}
	if next != nil {
		result.NextScheduledID = next.ID
	}
	return result, nil
}

// scheduleNext creates the renewal row after a completed charge. It returns
// nil without error when the series is exhausted or bills only once.
func (s *subscriptionService) scheduleNext(ctx context.Context, completed *subscription.Subscription, attrs types.BillingAttributes) (*subscription.Subscription, error) {
	completedCycles, err := s.SubRepo.CompletedCycleCount(ctx, completed.LineageID)
	if err != nil {
		return nil, err
	}

	nextDate, ok, err := types.NextBillingDate(completed.ScheduledAt, attrs, completedCycles, 0)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.Logger.Infow("billing series finished",
			"subscription_id", completed.ID,
			"lineage_id", completed.LineageID,
			"completed_cycles", completedCycles)
		return nil, nil
	}

	next := &subscription.Subscription{
		ID:              types.GenerateUUIDWithPrefix(types.UUIDPrefixSubscription),
		LineageID:       completed.LineageID,
		CustomerID:      completed.CustomerID,
		OrderLineID:     completed.OrderLineID,
		PaymentMethodID: completed.PaymentMethodID,
		Amount:          completed.Amount,
		Currency:        completed.Currency,
		ScheduledAt:     nextDate,
		ScheduleStatus:  types.ScheduleStatusScheduled,
		Snapshot:        completed.Snapshot,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
	if err := s.SubRepo.Create(ctx, next); err != nil {
		return nil, err
	}

	s.Logger.Infow("renewal scheduled",
		"subscription_id", next.ID,
		"lineage_id", next.LineageID,
		"scheduled_at", next.ScheduledAt)
	return next, nil
}

func (s *subscriptionService) UpdatePaymentStatus(ctx context.Context, id string, req *dto.UpdatePaymentStatusRequest) (bool, error) {
	if err := req.Validate(); err != nil {
		return false, err
	}

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return false, err
	}

	if !s.callerOwns(ctx, sub, req.CallerCustomerID) {
		s.Logger.Warnw("status mutation rejected, caller is not the owner",
			"subscription_id", id,
			"caller_customer_id", req.CallerCustomerID)
		return false, nil
	}

	transitioned, err := s.SubRepo.TransitionStatus(ctx, id, sub.ScheduleStatus, req.Status, req.Comment)
	if err != nil {
		return false, err
	}
	if transitioned {
		s.attrs.InvalidateCache(ctx, id)
	}
	return transitioned, nil
}

func (s *subscriptionService) Cancel(ctx context.Context, id, reason, callerCustomerID string) (bool, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return false, err
	}

	if !s.callerOwns(ctx, sub, callerCustomerID) {
		s.Logger.Warnw("cancellation rejected, caller is not the owner",
			"subscription_id", id,
			"caller_customer_id", callerCustomerID)
		return false, nil
	}

	if sub.ScheduleStatus == types.ScheduleStatusCancelled {
		return true, nil
	}

	comment := "cancelled"
	if reason != "" {
		comment = "cancelled: " + reason
	}
	transitioned, err := s.SubRepo.TransitionStatus(ctx, id, sub.ScheduleStatus, types.ScheduleStatusCancelled, comment)
	if err != nil {
		return false, err
	}
	if transitioned {
		s.attrs.InvalidateCache(ctx, id)
		s.notifyCancelled(ctx, sub, reason)
	}
	return transitioned, nil
}

func (s *subscriptionService) Reactivate(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.ScheduleStatus != types.ScheduleStatusScheduled {
		return nil, ierr.NewError("subscription is not pending").
			WithHint("Only a scheduled subscription can be reactivated").
			WithReportableDetails(map[string]any{
				"subscription_id": id,
				"schedule_status": sub.ScheduleStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	pm, err := s.PaymentMethodRepo.Get(ctx, sub.PaymentMethodID)
	if err == nil && pm.Usable() {
		return &dto.SubscriptionResponse{Subscription: sub}, nil
	}

	primary, err := s.PaymentMethodRepo.GetPrimary(ctx, sub.CustomerID)
	if err != nil || !primary.Usable() {
		transitioned, terr := s.SubRepo.TransitionStatus(ctx, id,
			types.ScheduleStatusScheduled, types.ScheduleStatusCancelled, commentNoUsableInstrument)
		if terr != nil {
			return nil, terr
		}
		if transitioned {
			s.notifyCancelled(ctx, sub, "no usable payment instrument on file")
		}
		sub.ScheduleStatus = types.ScheduleStatusCancelled
		return &dto.SubscriptionResponse{Subscription: sub}, nil
	}

	sub.PaymentMethodID = primary.ID
	sub.AppendComment(fmt.Sprintf("payment instrument replaced with default %s", primary.ID))
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("payment instrument substituted",
		"subscription_id", sub.ID,
		"payment_method_id", primary.ID)
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) SkipNextPayment(ctx context.Context, id, callerCustomerID string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.ScheduleStatus != types.ScheduleStatusScheduled {
		return nil, ierr.NewError("subscription is not pending").
			WithHint("Only a scheduled payment can be skipped").
			Mark(ierr.ErrInvalidOperation)
	}
	if !s.callerOwns(ctx, sub, callerCustomerID) {
		return nil, ierr.NewError("caller is not the owner").
			WithHint("Subscription belongs to another customer").
			Mark(ierr.ErrPermissionDenied)
	}

	attrs, err := s.attrs.Resolve(ctx, sub, nil)
	if err != nil {
		return nil, err
	}

	nextDate, err := types.SkipNextPaymentDate(sub.ScheduledAt, attrs)
	if err != nil {
		return nil, err
	}

	previous := sub.ScheduledAt
	sub.ScheduledAt = nextDate
	sub.AppendComment(fmt.Sprintf("payment skipped, moved from %s to %s",
		previous.Format("2006-01-02"), nextDate.Format("2006-01-02")))
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("payment skipped",
		"subscription_id", sub.ID,
		"scheduled_at", sub.ScheduledAt)
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) FailureCount(ctx context.Context, lineageID string) (int, error) {
	return s.SubRepo.FailureCountSinceLastComplete(ctx, lineageID)
}

// callerOwns resolves the subscription's owning customer id and checks it
// against the caller-asserted id. Owner precedence: the saved instrument's
// customer, then the subscription row's customer, then the request context.
// An empty caller id means an internal invocation and is always allowed.
func (s *subscriptionService) callerOwns(ctx context.Context, sub *subscription.Subscription, callerCustomerID string) bool {
	if callerCustomerID == "" {
		return true
	}

	owner := ""
	if pm, err := s.PaymentMethodRepo.Get(ctx, sub.PaymentMethodID); err == nil && pm.CustomerID != "" {
		owner = pm.CustomerID
	} else if sub.CustomerID != "" {
		owner = sub.CustomerID
	} else {
		owner = types.GetCustomerID(ctx)
	}

	return owner == callerCustomerID
}

// cancelForMissingOrderLine ends a lineage whose source order line has been
// permanently removed. The reason is written to a dedicated diagnostic log
// file instead of the subscription comments, and the single comment token is
// never appended twice.
func (s *subscriptionService) cancelForMissingOrderLine(ctx context.Context, sub *subscription.Subscription) error {
	if sub.ScheduleStatus == types.ScheduleStatusCancelled && sub.HasComment(commentMissingOrderLine) {
		return nil
	}

	transitioned, err := s.SubRepo.TransitionStatus(ctx, sub.ID,
		sub.ScheduleStatus, types.ScheduleStatusCancelled, commentMissingOrderLine)
	if err != nil {
		return err
	}
	if !transitioned {
		return nil
	}

	s.attrs.InvalidateCache(ctx, sub.ID)
	s.appendCancellationLog(sub.ID, commentMissingOrderLine)
	s.notifyCancelled(ctx, sub, "the originating order no longer exists")
	return nil
}

func (s *subscriptionService) appendCancellationLog(subscriptionID, reason string) {
	path := s.Config.Billing.CancellationLogPath
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.Logger.Errorw("failed to open cancellation log", "path", path, "error", err)
		return
	}
	defer f.Close()
	line := fmt.Sprintf("%s subscription=%s %s\n",
		time.Now().UTC().Format(time.RFC3339), subscriptionID, reason)
	if _, err := f.WriteString(line); err != nil {
		s.Logger.Errorw("failed to write cancellation log", "path", path, "error", err)
	}
}

func (s *subscriptionService) notifyChargeFailed(ctx context.Context, sub *subscription.Subscription, productName, reason string) {
	cust, err := s.CustomerRepo.Get(ctx, sub.CustomerID)
	if err != nil {
		s.Logger.Errorw("cannot notify customer of failed charge",
			"subscription_id", sub.ID,
			"error", err)
		return
	}
	s.Email.NotifyChargeFailed(ctx, cust.Email, productName, reason)
}

func (s *subscriptionService) notifyCancelled(ctx context.Context, sub *subscription.Subscription, reason string) {
	cust, err := s.CustomerRepo.Get(ctx, sub.CustomerID)
	if err != nil {
		s.Logger.Errorw("cannot notify customer of cancellation",
			"subscription_id", sub.ID,
			"error", err)
		return
	}
	productName := ""
	if sub.Snapshot != nil {
		productName = sub.Snapshot.Name
	}
	s.Email.NotifyCancelled(ctx, cust.Email, productName, reason)
}

// checkDunning alerts the admin channel once the lineage has accumulated the
// configured number of consecutive failures.
func (s *subscriptionService) checkDunning(ctx context.Context, sub *subscription.Subscription) {
	threshold := s.Config.Billing.DunningThreshold
	if threshold <= 0 {
		return
	}
	count, err := s.SubRepo.FailureCountSinceLastComplete(ctx, sub.LineageID)
	if err != nil {
		s.Logger.Errorw("failed to evaluate dunning threshold",
			"lineage_id", sub.LineageID,
			"error", err)
		return
	}
	if count < threshold {
		return
	}
	s.Logger.Warnw("dunning threshold reached",
		"lineage_id", sub.LineageID,
		"failures", count)
	s.Email.NotifyGatewayError(ctx, "dunning threshold reached",
		fmt.Sprintf("subscription lineage %s has %d consecutive failed charges", sub.LineageID, count))
}

func applyDefaults(snapshot *subscription.AttributeSnapshot, defaults map[string]string) {
	if len(defaults) == 0 {
		return
	}
	applySnapshotValues(snapshot, defaults)
}
