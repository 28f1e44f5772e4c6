package service

import (
	"testing"

	"github.com/cartloop/recurbill/internal/api/dto"
	"github.com/cartloop/recurbill/internal/domain/customer"
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/testutil"
	"github.com/cartloop/recurbill/internal/types"
	"github.com/stretchr/testify/suite"
)

type PaymentMethodServiceSuite struct {
	testutil.BaseServiceTestSuite
	svc        PaymentMethodService
	customerID string
}

func TestPaymentMethodService(t *testing.T) {
	suite.Run(t, new(PaymentMethodServiceSuite))
}

func (s *PaymentMethodServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	stores := s.GetStores()
	s.svc = NewPaymentMethodService(ServiceParams{
		Logger:            s.GetLogger(),
		Config:            s.GetConfig(),
		Cache:             s.GetCache(),
		SubRepo:           stores.SubscriptionRepo,
		PaymentMethodRepo: stores.PaymentMethodRepo,
		CustomerRepo:      stores.CustomerRepo,
		OrderLineRepo:     stores.OrderLineRepo,
	})

	cust := &customer.Customer{
		ID:        types.GenerateUUIDWithPrefix(types.UUIDPrefixCustomer),
		Name:      "Test Customer",
		Email:     "customer@example.com",
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(stores.CustomerRepo.Create(s.GetContext(), cust))
	s.customerID = cust.ID
}

func (s *PaymentMethodServiceSuite) create(req *dto.CreatePaymentMethodRequest) *dto.PaymentMethodResponse {
	resp, err := s.svc.Create(s.GetContext(), req)
	s.Require().NoError(err)
	return resp
}

func (s *PaymentMethodServiceSuite) TestCreateVaultedCard() {
	resp := s.create(&dto.CreatePaymentMethodRequest{
		CustomerID: s.customerID,
		APIType:    types.GatewayAPITypeREST,
		VaultID:    "VAULT-1",
		Brand:      "visa",
		LastFour:   "4242",
	})

	s.Equal(s.customerID, resp.CustomerID)
	s.True(resp.Usable())
	s.False(resp.Primary)
}

func (s *PaymentMethodServiceSuite) TestCreateRequiresVendorReference() {
	_, err := s.svc.Create(s.GetContext(), &dto.CreatePaymentMethodRequest{
		CustomerID: s.customerID,
		APIType:    types.GatewayAPITypeREST,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PaymentMethodServiceSuite) TestCreateForUnknownCustomer() {
	_, err := s.svc.Create(s.GetContext(), &dto.CreatePaymentMethodRequest{
		CustomerID: "cust_missing",
		APIType:    types.GatewayAPITypeNVP,
		Token:      "B-1",
	})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *PaymentMethodServiceSuite) TestPrimaryIsExclusive() {
	first := s.create(&dto.CreatePaymentMethodRequest{
		CustomerID: s.customerID,
		APIType:    types.GatewayAPITypeREST,
		VaultID:    "VAULT-1",
		Primary:    true,
	})
	second := s.create(&dto.CreatePaymentMethodRequest{
		CustomerID: s.customerID,
		APIType:    types.GatewayAPITypeREST,
		VaultID:    "VAULT-2",
		Primary:    true,
	})

	reloaded, err := s.svc.Get(s.GetContext(), first.ID)
	s.NoError(err)
	s.False(reloaded.Primary, "creating a new primary must demote the old one")

	primary, err := s.GetStores().PaymentMethodRepo.GetPrimary(s.GetContext(), s.customerID)
	s.NoError(err)
	s.Equal(second.ID, primary.ID)
}

func (s *PaymentMethodServiceSuite) TestListOrdersPrimaryFirst() {
	plain := s.create(&dto.CreatePaymentMethodRequest{
		CustomerID: s.customerID,
		APIType:    types.GatewayAPITypeNVP,
		Token:      "B-1",
	})
	primary := s.create(&dto.CreatePaymentMethodRequest{
		CustomerID: s.customerID,
		APIType:    types.GatewayAPITypeREST,
		VaultID:    "VAULT-1",
		Primary:    true,
	})

	list, err := s.svc.List(s.GetContext(), s.customerID)
	s.Require().NoError(err)
	s.Equal(2, list.Total)
	s.Equal(primary.ID, list.Items[0].ID)
	s.Equal(plain.ID, list.Items[1].ID)
}

func (s *PaymentMethodServiceSuite) TestDeleteHidesFromListing() {
	pm := s.create(&dto.CreatePaymentMethodRequest{
		CustomerID: s.customerID,
		APIType:    types.GatewayAPITypeREST,
		VaultID:    "VAULT-1",
	})

	s.NoError(s.svc.Delete(s.GetContext(), pm.ID, s.customerID))

	list, err := s.svc.List(s.GetContext(), s.customerID)
	s.Require().NoError(err)
	s.Equal(0, list.Total)

	// The row survives for historic references.
	stored, err := s.svc.Get(s.GetContext(), pm.ID)
	s.NoError(err)
	s.True(stored.Deleted)
	s.False(stored.Usable())
}

func (s *PaymentMethodServiceSuite) TestDeleteByForeignCaller() {
	pm := s.create(&dto.CreatePaymentMethodRequest{
		CustomerID: s.customerID,
		APIType:    types.GatewayAPITypeREST,
		VaultID:    "VAULT-1",
	})

	err := s.svc.Delete(s.GetContext(), pm.ID, "cust_intruder")
	s.Error(err)
	s.True(ierr.IsPermissionDenied(err))
}
