package service

import (
	"context"

	"github.com/cartloop/recurbill/internal/api/dto"
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/validator"
)

type PaymentMethodService interface {
	Create(ctx context.Context, req *dto.CreatePaymentMethodRequest) (*dto.PaymentMethodResponse, error)
	Get(ctx context.Context, id string) (*dto.PaymentMethodResponse, error)
	List(ctx context.Context, customerID string) (*dto.ListPaymentMethodsResponse, error)
	SetPrimary(ctx context.Context, customerID, id string) error

	// Delete soft-deletes the instrument. Scheduled subscriptions that still
	// reference it are repaired or cancelled at their next billing.
	Delete(ctx context.Context, id, callerCustomerID string) error
}

type paymentMethodService struct {
	ServiceParams
}

func NewPaymentMethodService(params ServiceParams) PaymentMethodService {
	return &paymentMethodService{ServiceParams: params}
}

func (s *paymentMethodService) Create(ctx context.Context, req *dto.CreatePaymentMethodRequest) (*dto.PaymentMethodResponse, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	if _, err := s.CustomerRepo.Get(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	pm := req.ToPaymentMethod(ctx)
	if err := pm.Validate(); err != nil {
		return nil, err
	}

	if err := s.PaymentMethodRepo.Create(ctx, pm); err != nil {
		return nil, err
	}
	if pm.Primary {
		if err := s.PaymentMethodRepo.SetPrimary(ctx, pm.CustomerID, pm.ID); err != nil {
			return nil, err
		}
	}

	s.Logger.Infow("payment method saved",
		"payment_method_id", pm.ID,
		"customer_id", pm.CustomerID,
		"api_type", pm.APIType)
	return &dto.PaymentMethodResponse{PaymentMethod: pm}, nil
}

func (s *paymentMethodService) Get(ctx context.Context, id string) (*dto.PaymentMethodResponse, error) {
	pm, err := s.PaymentMethodRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.PaymentMethodResponse{PaymentMethod: pm}, nil
}

func (s *paymentMethodService) List(ctx context.Context, customerID string) (*dto.ListPaymentMethodsResponse, error) {
	pms, err := s.PaymentMethodRepo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	resp := &dto.ListPaymentMethodsResponse{
		Items: make([]*dto.PaymentMethodResponse, 0, len(pms)),
		Total: len(pms),
	}
	for _, pm := range pms {
		resp.Items = append(resp.Items, &dto.PaymentMethodResponse{PaymentMethod: pm})
	}
	return resp, nil
}

func (s *paymentMethodService) SetPrimary(ctx context.Context, customerID, id string) error {
	return s.PaymentMethodRepo.SetPrimary(ctx, customerID, id)
}

func (s *paymentMethodService) Delete(ctx context.Context, id, callerCustomerID string) error {
	pm, err := s.PaymentMethodRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	if callerCustomerID != "" && pm.CustomerID != callerCustomerID {
		return ierr.NewError("caller is not the owner").
			WithHint("Payment method belongs to another customer").
			Mark(ierr.ErrPermissionDenied)
	}
	return s.PaymentMethodRepo.SoftDelete(ctx, id)
}
