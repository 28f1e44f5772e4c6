package service

import (
	"os"
	"strings"
	"testing"

	"github.com/cartloop/recurbill/internal/api/dto"
	"github.com/cartloop/recurbill/internal/domain/customer"
	"github.com/cartloop/recurbill/internal/domain/orderline"
	"github.com/cartloop/recurbill/internal/domain/paymentmethod"
	"github.com/cartloop/recurbill/internal/domain/subscription"
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/testutil"
	"github.com/cartloop/recurbill/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	svc     SubscriptionService
	gateway *testutil.FakeGateway
	email   *testutil.FakeEmailSender

	customerID      string
	paymentMethodID string
	orderLineID     string
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.gateway = testutil.NewFakeGateway()
	s.email = testutil.NewFakeEmailSender()

	stores := s.GetStores()
	params := ServiceParams{
		Logger:            s.GetLogger(),
		Config:            s.GetConfig(),
		Cache:             s.GetCache(),
		SubRepo:           stores.SubscriptionRepo,
		PaymentMethodRepo: stores.PaymentMethodRepo,
		CustomerRepo:      stores.CustomerRepo,
		OrderLineRepo:     stores.OrderLineRepo,
		Gateway:           s.gateway,
		Email:             s.email,
	}
	s.svc = NewSubscriptionService(params, NewAttributeService(params))

	s.seedFixtures()
}

func (s *SubscriptionServiceSuite) seedFixtures() {
	ctx := s.GetContext()
	stores := s.GetStores()

	cust := &customer.Customer{
		ID:        types.GenerateUUIDWithPrefix(types.UUIDPrefixCustomer),
		Name:      "Test Customer",
		Email:     "customer@example.com",
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
	s.NoError(stores.CustomerRepo.Create(ctx, cust))
	s.customerID = cust.ID

	pm := &paymentmethod.PaymentMethod{
		ID:         types.GenerateUUIDWithPrefix(types.UUIDPrefixPaymentMethod),
		CustomerID: cust.ID,
		APIType:    types.GatewayAPITypeREST,
		VaultID:    "VAULT-1",
		Brand:      "visa",
		LastFour:   "4242",
		BaseModel:  types.GetDefaultBaseModel(ctx),
	}
	s.NoError(stores.PaymentMethodRepo.Create(ctx, pm))
	s.paymentMethodID = pm.ID

	line := &orderline.OrderLine{
		ID:           types.GenerateUUIDWithPrefix(types.UUIDPrefixOrderLine),
		OrderID:      "ord_1",
		CustomerID:   cust.ID,
		ProductName:  "Managed Hosting",
		ProductModel: "HOST-12",
		Price:        decimal.RequireFromString("29.00"),
		Currency:     "USD",
		Attributes: []orderline.Attribute{
			{ID: types.GenerateUUID(), Name: "Billing Period", Value: "Month"},
			{ID: types.GenerateUUID(), Name: "Billing Frequency", Value: "1"},
			{ID: types.GenerateUUID(), Name: "Total Billing Cycles", Value: "12"},
		},
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
	s.NoError(stores.OrderLineRepo.(*testutil.InMemoryOrderLineStore).Add(ctx, line))
	s.orderLineID = line.ID
}

func (s *SubscriptionServiceSuite) createSubscription() *subscription.Subscription {
	resp, err := s.svc.Create(s.GetContext(), &dto.CreateSubscriptionRequest{
		CustomerID:      s.customerID,
		OrderLineID:     s.orderLineID,
		PaymentMethodID: s.paymentMethodID,
	})
	s.Require().NoError(err)
	return resp.Subscription
}

func (s *SubscriptionServiceSuite) TestCreateSchedulesFirstAttempt() {
	sub := s.createSubscription()

	s.Equal(types.ScheduleStatusScheduled, sub.ScheduleStatus)
	s.NotEmpty(sub.LineageID)
	s.Equal(types.DateOnly(s.GetNow()), sub.ScheduledAt)
	s.True(sub.Amount.Equal(decimal.RequireFromString("29.00")), "amount defaults to the line price")
	s.Equal("USD", sub.Currency)
	s.Require().NotNil(sub.Snapshot)
	s.True(sub.Snapshot.IsComplete())
	s.Equal(12, sub.Snapshot.TotalBillingCycles)
}

func (s *SubscriptionServiceSuite) TestCreateRejectsForeignInstrument() {
	other := &customer.Customer{
		ID:        types.GenerateUUIDWithPrefix(types.UUIDPrefixCustomer),
		Name:      "Other Customer",
		Email:     "other@example.com",
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().CustomerRepo.Create(s.GetContext(), other))

	_, err := s.svc.Create(s.GetContext(), &dto.CreateSubscriptionRequest{
		CustomerID:      other.ID,
		OrderLineID:     s.orderLineID,
		PaymentMethodID: s.paymentMethodID,
	})
	s.Error(err)
	s.True(ierr.IsPermissionDenied(err))
}

func (s *SubscriptionServiceSuite) TestChargeOneSuccessSchedulesRenewal() {
	sub := s.createSubscription()

	result, err := s.svc.ChargeOne(s.GetContext(), sub.ID)
	s.Require().NoError(err)
	s.Equal(types.ScheduleStatusComplete, result.Status)
	s.Equal("TXN-TEST-1", result.TransactionID)
	s.Require().NotEmpty(result.NextScheduledID)
	s.Equal(1, s.gateway.CallCount())

	completed, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusComplete, completed.ScheduleStatus)
	s.Require().NotNil(completed.TransactionID)
	s.Equal("TXN-TEST-1", *completed.TransactionID)
	s.True(completed.HasComment("charged"))

	next, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), result.NextScheduledID)
	s.NoError(err)
	s.Equal(sub.LineageID, next.LineageID)
	s.Equal(types.ScheduleStatusScheduled, next.ScheduleStatus)
	s.Equal(types.AddClampedDate(sub.ScheduledAt, 0, 1, 0), next.ScheduledAt)
	s.Require().NotNil(next.Snapshot)
	s.True(next.Snapshot.IsComplete(), "renewal carries the snapshot forward")
}

func (s *SubscriptionServiceSuite) TestSeriesEndsAfterFinalCycle() {
	ctx := s.GetContext()
	stores := s.GetStores()

	sub := s.createSubscription()
	sub.Snapshot.TotalBillingCycles = 2
	s.NoError(stores.SubscriptionRepo.UpdateSnapshot(ctx, sub.ID, sub.Snapshot))

	first, err := s.svc.ChargeOne(ctx, sub.ID)
	s.Require().NoError(err)
	s.Require().NotEmpty(first.NextScheduledID)

	second, err := s.svc.ChargeOne(ctx, first.NextScheduledID)
	s.Require().NoError(err)
	s.Equal(types.ScheduleStatusComplete, second.Status)
	s.Empty(second.NextScheduledID, "second of two cycles must not schedule a third")

	remaining, err := stores.SubscriptionRepo.List(ctx, &types.SubscriptionFilter{
		LineageID:      sub.LineageID,
		ScheduleStatus: []types.ScheduleStatus{types.ScheduleStatusScheduled},
	})
	s.NoError(err)
	s.Empty(remaining)
}

func (s *SubscriptionServiceSuite) TestChargeFailureMarksFailedAndNotifies() {
	s.gateway.Fail = true
	s.gateway.FailError = "card declined"
	sub := s.createSubscription()

	result, err := s.svc.ChargeOne(s.GetContext(), sub.ID)
	s.Require().NoError(err)
	s.Equal(types.ScheduleStatusFailed, result.Status)
	s.Equal("card declined", result.Error)
	s.Empty(result.NextScheduledID)

	failed, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusFailed, failed.ScheduleStatus)
	s.True(failed.HasComment("charge failed: card declined"))

	notices := s.email.ByKind("charge_failed")
	s.Require().Len(notices, 1)
	s.Equal("card declined", notices[0].Body)
}

func (s *SubscriptionServiceSuite) TestDunningAlertAfterRepeatedFailures() {
	ctx := s.GetContext()
	s.gateway.Fail = true
	sub := s.createSubscription()

	// Two earlier failed attempts in the same lineage, no complete since.
	for i := 0; i < 2; i++ {
		prior := &subscription.Subscription{
			ID:              types.GenerateUUIDWithPrefix(types.UUIDPrefixSubscription),
			LineageID:       sub.LineageID,
			CustomerID:      s.customerID,
			PaymentMethodID: s.paymentMethodID,
			Amount:          sub.Amount,
			Currency:        sub.Currency,
			ScheduledAt:     sub.ScheduledAt.AddDate(0, -i-1, 0),
			ScheduleStatus:  types.ScheduleStatusFailed,
			Snapshot:        sub.Snapshot,
			BaseModel:       types.GetDefaultBaseModel(ctx),
		}
		s.NoError(s.GetStores().SubscriptionRepo.Create(ctx, prior))
	}

	_, err := s.svc.ChargeOne(ctx, sub.ID)
	s.Require().NoError(err)

	count, err := s.svc.FailureCount(ctx, sub.LineageID)
	s.NoError(err)
	s.Equal(3, count)

	alerts := s.email.ByKind("gateway_error")
	s.Require().Len(alerts, 1)
	s.Contains(alerts[0].Subject, "dunning")
}

func (s *SubscriptionServiceSuite) TestMissingOrderLineCancels() {
	ctx := s.GetContext()
	stores := s.GetStores()

	sub := s.createSubscription()
	// Sever the snapshot and remove the source line so resolution has
	// nowhere left to go.
	s.NoError(stores.SubscriptionRepo.UpdateSnapshot(ctx, sub.ID, nil))
	s.NoError(stores.OrderLineRepo.(*testutil.InMemoryOrderLineStore).Remove(ctx, s.orderLineID))

	result, err := s.svc.ChargeOne(ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(types.ScheduleStatusCancelled, result.Status)
	s.Equal(0, s.gateway.CallCount(), "no charge may be attempted without billing attributes")

	cancelled, err := stores.SubscriptionRepo.Get(ctx, sub.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusCancelled, cancelled.ScheduleStatus)
	s.True(cancelled.HasComment("source order line removed"))
	s.Require().Len(s.email.ByKind("cancelled"), 1)

	data, err := os.ReadFile(s.GetConfig().Billing.CancellationLogPath)
	s.NoError(err)
	s.Contains(string(data), sub.ID)

	// Running the charge again is a no-op: the row is already cancelled.
	again, err := s.svc.ChargeOne(ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(types.ScheduleStatusCancelled, again.Status)

	after, err := stores.SubscriptionRepo.Get(ctx, sub.ID)
	s.NoError(err)
	s.Equal(1, strings.Count(after.Comments, "source order line removed"))
	s.Len(s.email.ByKind("cancelled"), 1)
}

func (s *SubscriptionServiceSuite) TestChargeDueProcessesEveryRow() {
	ctx := s.GetContext()
	stores := s.GetStores()

	healthy := s.createSubscription()

	doomed := s.createSubscription()
	brokenPM := &paymentmethod.PaymentMethod{
		ID:         types.GenerateUUIDWithPrefix(types.UUIDPrefixPaymentMethod),
		CustomerID: s.customerID,
		APIType:    types.GatewayAPITypeREST,
		VaultID:    "VAULT-GONE",
		Deleted:    true,
		BaseModel:  types.GetDefaultBaseModel(ctx),
	}
	s.NoError(stores.PaymentMethodRepo.Create(ctx, brokenPM))
	doomedRow, err := stores.SubscriptionRepo.Get(ctx, doomed.ID)
	s.Require().NoError(err)
	doomedRow.PaymentMethodID = brokenPM.ID
	s.NoError(stores.SubscriptionRepo.Update(ctx, doomedRow))

	summary, err := s.svc.ChargeDue(ctx, s.GetNow())
	s.Require().NoError(err)
	s.Equal(2, summary.Processed)
	s.Equal(1, summary.Succeeded)
	s.Equal(1, summary.Failed)

	completed, err := stores.SubscriptionRepo.Get(ctx, healthy.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusComplete, completed.ScheduleStatus)
}

func (s *SubscriptionServiceSuite) TestUpdatePaymentStatusOwnerMismatch() {
	sub := s.createSubscription()

	ok, err := s.svc.UpdatePaymentStatus(s.GetContext(), sub.ID, &dto.UpdatePaymentStatusRequest{
		Status:           types.ScheduleStatusCancelled,
		CallerCustomerID: "cust_intruder",
	})
	s.NoError(err)
	s.False(ok)

	unchanged, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusScheduled, unchanged.ScheduleStatus)
}

func (s *SubscriptionServiceSuite) TestUpdatePaymentStatusByOwner() {
	sub := s.createSubscription()

	ok, err := s.svc.UpdatePaymentStatus(s.GetContext(), sub.ID, &dto.UpdatePaymentStatusRequest{
		Status:           types.ScheduleStatusCancelled,
		CallerCustomerID: s.customerID,
		Comment:          "customer requested stop",
	})
	s.NoError(err)
	s.True(ok)

	cancelled, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusCancelled, cancelled.ScheduleStatus)
	s.True(cancelled.HasComment("customer requested stop"))
}

func (s *SubscriptionServiceSuite) TestCancelIsIdempotent() {
	sub := s.createSubscription()

	ok, err := s.svc.Cancel(s.GetContext(), sub.ID, "no longer needed", "")
	s.NoError(err)
	s.True(ok)

	ok, err = s.svc.Cancel(s.GetContext(), sub.ID, "no longer needed", "")
	s.NoError(err)
	s.True(ok)

	s.Len(s.email.ByKind("cancelled"), 1, "repeat cancellation must not notify again")
}

func (s *SubscriptionServiceSuite) TestReactivateSubstitutesPrimaryInstrument() {
	ctx := s.GetContext()
	stores := s.GetStores()

	sub := s.createSubscription()
	s.NoError(stores.PaymentMethodRepo.SoftDelete(ctx, s.paymentMethodID))

	replacement := &paymentmethod.PaymentMethod{
		ID:         types.GenerateUUIDWithPrefix(types.UUIDPrefixPaymentMethod),
		CustomerID: s.customerID,
		APIType:    types.GatewayAPITypeREST,
		VaultID:    "VAULT-NEW",
		BaseModel:  types.GetDefaultBaseModel(ctx),
	}
	s.NoError(stores.PaymentMethodRepo.Create(ctx, replacement))
	s.NoError(stores.PaymentMethodRepo.SetPrimary(ctx, s.customerID, replacement.ID))

	resp, err := s.svc.Reactivate(ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(replacement.ID, resp.PaymentMethodID)
	s.Equal(types.ScheduleStatusScheduled, resp.ScheduleStatus)

	stored, err := stores.SubscriptionRepo.Get(ctx, sub.ID)
	s.NoError(err)
	s.Equal(replacement.ID, stored.PaymentMethodID)
	s.True(stored.HasComment("payment instrument replaced"))
}

func (s *SubscriptionServiceSuite) TestReactivateWithoutAnyInstrumentCancels() {
	ctx := s.GetContext()
	sub := s.createSubscription()
	s.NoError(s.GetStores().PaymentMethodRepo.SoftDelete(ctx, s.paymentMethodID))

	resp, err := s.svc.Reactivate(ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(types.ScheduleStatusCancelled, resp.ScheduleStatus)

	stored, err := s.GetStores().SubscriptionRepo.Get(ctx, sub.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusCancelled, stored.ScheduleStatus)
	s.Require().Len(s.email.ByKind("cancelled"), 1)
}

func (s *SubscriptionServiceSuite) TestReactivateUsableInstrumentIsNoOp() {
	sub := s.createSubscription()

	resp, err := s.svc.Reactivate(s.GetContext(), sub.ID)
	s.Require().NoError(err)
	s.Equal(s.paymentMethodID, resp.PaymentMethodID)
	s.Equal(types.ScheduleStatusScheduled, resp.ScheduleStatus)
}

func (s *SubscriptionServiceSuite) TestSkipNextPayment() {
	sub := s.createSubscription()

	resp, err := s.svc.SkipNextPayment(s.GetContext(), sub.ID, s.customerID)
	s.Require().NoError(err)
	s.Equal(types.AddClampedDate(sub.ScheduledAt, 0, 1, 0), resp.ScheduledAt)
	s.True(resp.HasComment("payment skipped"))
	s.Equal(0, s.gateway.CallCount())
}

func (s *SubscriptionServiceSuite) TestSkipNextPaymentForeignCaller() {
	sub := s.createSubscription()

	_, err := s.svc.SkipNextPayment(s.GetContext(), sub.ID, "cust_intruder")
	s.Error(err)
	s.True(ierr.IsPermissionDenied(err))

	unchanged, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(sub.ScheduledAt, unchanged.ScheduledAt)
}

func (s *SubscriptionServiceSuite) TestConcurrentCompletionNotRescheduled() {
	ctx := s.GetContext()
	sub := s.createSubscription()

	// Simulate a racing invocation finishing first: the row is already
	// complete by the time this charge would transition it.
	transitioned, err := s.GetStores().SubscriptionRepo.TransitionStatus(ctx,
		sub.ID, types.ScheduleStatusScheduled, types.ScheduleStatusComplete, "charged elsewhere")
	s.Require().NoError(err)
	s.Require().True(transitioned)

	result, err := s.svc.ChargeOne(ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(types.ScheduleStatusComplete, result.Status)
	s.Empty(result.NextScheduledID)
	s.Equal(0, s.gateway.CallCount())

	// Only the racing transition's comment is present.
	row, err := s.GetStores().SubscriptionRepo.Get(ctx, sub.ID)
	s.NoError(err)
	s.Equal(1, strings.Count(row.Comments, "charged"))
}

func (s *SubscriptionServiceSuite) TestSemiMonthlySkipMovesFifteenDays() {
	ctx := s.GetContext()
	stores := s.GetStores()

	sub := s.createSubscription()
	sub.Snapshot.BillingPeriod = "SemiMonth"
	s.NoError(stores.SubscriptionRepo.UpdateSnapshot(ctx, sub.ID, sub.Snapshot))

	resp, err := s.svc.SkipNextPayment(ctx, sub.ID, "")
	s.Require().NoError(err)
	s.Equal(sub.ScheduledAt.AddDate(0, 0, 15), resp.ScheduledAt)
}

func (s *SubscriptionServiceSuite) TestTimeBasedChargeSelection() {
	ctx := s.GetContext()
	stores := s.GetStores()

	sub := s.createSubscription()
	future, err := stores.SubscriptionRepo.Get(ctx, sub.ID)
	s.Require().NoError(err)
	future.ScheduledAt = types.DateOnly(s.GetNow()).AddDate(0, 0, 7)
	s.NoError(stores.SubscriptionRepo.Update(ctx, future))

	summary, err := s.svc.ChargeDue(ctx, s.GetNow())
	s.Require().NoError(err)
	s.Equal(0, summary.Processed, "rows due in the future are not charged")
	s.Equal(0, s.gateway.CallCount())
}
