package service

import (
	"context"

	"github.com/cartloop/recurbill/internal/api/dto"
	"github.com/cartloop/recurbill/internal/validator"
)

type CustomerService interface {
	Create(ctx context.Context, req *dto.CreateCustomerRequest) (*dto.CustomerResponse, error)
	Get(ctx context.Context, id string) (*dto.CustomerResponse, error)
}

type customerService struct {
	ServiceParams
}

func NewCustomerService(params ServiceParams) CustomerService {
	return &customerService{ServiceParams: params}
}

func (s *customerService) Create(ctx context.Context, req *dto.CreateCustomerRequest) (*dto.CustomerResponse, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	c := req.ToCustomer(ctx)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.CustomerRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return &dto.CustomerResponse{Customer: c}, nil
}

func (s *customerService) Get(ctx context.Context, id string) (*dto.CustomerResponse, error) {
	c, err := s.CustomerRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.CustomerResponse{Customer: c}, nil
}
