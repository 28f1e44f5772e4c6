package service

import (
	"testing"

	"github.com/cartloop/recurbill/internal/domain/orderline"
	"github.com/cartloop/recurbill/internal/domain/subscription"
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/testutil"
	"github.com/cartloop/recurbill/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type AttributeServiceSuite struct {
	testutil.BaseServiceTestSuite
	attrs AttributeService
}

func TestAttributeService(t *testing.T) {
	suite.Run(t, new(AttributeServiceSuite))
}

func (s *AttributeServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.attrs = NewAttributeService(s.serviceParams())
}

func (s *AttributeServiceSuite) serviceParams() ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:            s.GetLogger(),
		Config:            s.GetConfig(),
		Cache:             s.GetCache(),
		SubRepo:           stores.SubscriptionRepo,
		PaymentMethodRepo: stores.PaymentMethodRepo,
		CustomerRepo:      stores.CustomerRepo,
		OrderLineRepo:     stores.OrderLineRepo,
	}
}

func (s *AttributeServiceSuite) seedOrderLine(attrs map[string]string) *orderline.OrderLine {
	line := &orderline.OrderLine{
		ID:           types.GenerateUUIDWithPrefix("line"),
		OrderID:      "ord_1",
		CustomerID:   "cust_1",
		ProductName:  "Managed Hosting",
		ProductModel: "HOST-12",
		Price:        decimal.RequireFromString("29.00"),
		Currency:     "USD",
		BaseModel:    types.GetDefaultBaseModel(s.GetContext()),
	}
	for name, value := range attrs {
		line.Attributes = append(line.Attributes, orderline.Attribute{
			ID:          types.GenerateUUID(),
			OrderLineID: line.ID,
			Name:        name,
			Value:       value,
		})
	}
	s.NoError(s.GetStores().OrderLineRepo.(*testutil.InMemoryOrderLineStore).Add(s.GetContext(), line))
	return line
}

func (s *AttributeServiceSuite) seedSubscription(orderLineID string, snapshot *subscription.AttributeSnapshot) *subscription.Subscription {
	sub := &subscription.Subscription{
		ID:              types.GenerateUUIDWithPrefix(types.UUIDPrefixSubscription),
		LineageID:       types.GenerateUUIDWithPrefix(types.UUIDPrefixSubscription),
		CustomerID:      "cust_1",
		PaymentMethodID: "pm_1",
		Amount:          decimal.RequireFromString("29.00"),
		Currency:        "USD",
		ScheduledAt:     types.DateOnly(s.GetNow()),
		ScheduleStatus:  types.ScheduleStatusScheduled,
		Snapshot:        snapshot,
		BaseModel:       types.GetDefaultBaseModel(s.GetContext()),
	}
	if orderLineID != "" {
		sub.OrderLineID = &orderLineID
	}
	s.NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), sub))
	return sub
}

func (s *AttributeServiceSuite) TestSnapshotFromOrderLine() {
	line := s.seedOrderLine(map[string]string{
		"Billing Period":       "Month",
		"Billing Frequency":    "1",
		"Total Billing Cycles": "12",
		"Domain Name":          "example.com",
	})

	snapshot, err := s.attrs.SnapshotFromOrderLine(s.GetContext(), line.ID)
	s.NoError(err)
	s.Equal("Month", snapshot.BillingPeriod)
	s.Equal("1", snapshot.BillingFrequency)
	s.Equal(12, snapshot.TotalBillingCycles)
	s.Equal("example.com", snapshot.Domain)
	s.Equal("Managed Hosting", snapshot.Name)
	s.Equal("HOST-12", snapshot.Model)
	s.Equal("USD", snapshot.Currency)
	s.True(snapshot.IsComplete())
}

func (s *AttributeServiceSuite) TestSnapshotFromOrderLineWithoutBillingOptions() {
	line := s.seedOrderLine(map[string]string{"Color": "blue"})

	_, err := s.attrs.SnapshotFromOrderLine(s.GetContext(), line.ID)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *AttributeServiceSuite) TestSnapshotValuesWinOverOrderLine() {
	line := s.seedOrderLine(map[string]string{
		"Billing Period":    "Week",
		"Billing Frequency": "2",
	})
	sub := s.seedSubscription(line.ID, &subscription.AttributeSnapshot{
		BillingPeriod:    "Month",
		BillingFrequency: "1",
	})

	attrs, err := s.attrs.Resolve(s.GetContext(), sub, nil)
	s.NoError(err)
	s.Equal(types.BILLING_PERIOD_MONTHLY, attrs.Period)
	s.Equal(1, attrs.Frequency)
}

func (s *AttributeServiceSuite) TestResolveWritesBackMergedSnapshot() {
	line := s.seedOrderLine(map[string]string{
		"Billing Period":    "Month",
		"Billing Frequency": "1",
	})
	sub := s.seedSubscription(line.ID, nil)

	_, err := s.attrs.Resolve(s.GetContext(), sub, nil)
	s.NoError(err)

	stored, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.NotNil(stored.Snapshot)
	s.True(stored.Snapshot.IsComplete(), "merged snapshot must be persisted on the row")
	s.Equal("Month", stored.Snapshot.BillingPeriod)
	s.Equal("Managed Hosting", stored.Snapshot.Name)
}

func (s *AttributeServiceSuite) TestResolveMapsDomainVariants() {
	line := s.seedOrderLine(map[string]string{
		"Billing Period":     "Year",
		"Billing Frequency":  "1",
		"Your Domain (.com)": "shop.example",
	})
	sub := s.seedSubscription(line.ID, nil)

	attrs, err := s.attrs.Resolve(s.GetContext(), sub, nil)
	s.NoError(err)
	s.Equal("shop.example", attrs.Domain)
}

func (s *AttributeServiceSuite) TestDefaultsFillOnlyMissingKeys() {
	line := s.seedOrderLine(map[string]string{
		"Billing Period": "Month",
	})
	sub := s.seedSubscription(line.ID, nil)

	attrs, err := s.attrs.Resolve(s.GetContext(), sub, map[string]string{
		"billingperiod":      "Week", // must lose to the order line value
		"billingfrequency":   "3",
		"totalbillingcycles": "6",
	})
	s.NoError(err)
	s.Equal(types.BILLING_PERIOD_MONTHLY, attrs.Period)
	s.Equal(3, attrs.Frequency)
	s.Equal(6, attrs.TotalCycles)
}

func (s *AttributeServiceSuite) TestResolveMissingOrderLine() {
	sub := s.seedSubscription("", nil)

	_, err := s.attrs.Resolve(s.GetContext(), sub, nil)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *AttributeServiceSuite) TestResolveDeletedOrderLine() {
	line := s.seedOrderLine(map[string]string{
		"Billing Period":    "Month",
		"Billing Frequency": "1",
	})
	sub := s.seedSubscription(line.ID, nil)
	s.NoError(s.GetStores().OrderLineRepo.(*testutil.InMemoryOrderLineStore).Remove(s.GetContext(), line.ID))

	_, err := s.attrs.Resolve(s.GetContext(), sub, nil)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *AttributeServiceSuite) TestResolveMemoizesPerSubscription() {
	sub := s.seedSubscription("", &subscription.AttributeSnapshot{
		BillingPeriod:    "Month",
		BillingFrequency: "1",
		Name:             "Managed Hosting",
		Model:            "HOST-12",
	})

	first, err := s.attrs.Resolve(s.GetContext(), sub, nil)
	s.NoError(err)

	// A second resolution serves from cache even if the in-hand snapshot is
	// mutated meanwhile.
	sub.Snapshot.BillingPeriod = "garbage"
	second, err := s.attrs.Resolve(s.GetContext(), sub, nil)
	s.NoError(err)
	s.Equal(first, second)

	s.attrs.InvalidateCache(s.GetContext(), sub.ID)
	_, err = s.attrs.Resolve(s.GetContext(), sub, nil)
	s.Error(err, "after invalidation the garbage period must surface")
}
