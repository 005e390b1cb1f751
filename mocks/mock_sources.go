package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"billrecon/internal/domain"
)

// MockCustomerSource is a mock implementation of port.CustomerSource.
type MockCustomerSource struct {
	mock.Mock
}

func (m *MockCustomerSource) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Customer), args.Error(1)
}

// MockDebtorSource is a mock implementation of port.DebtorSource.
type MockDebtorSource struct {
	mock.Mock
}

func (m *MockDebtorSource) LoadDebtors(ctx context.Context) ([]domain.Record, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Record), args.Error(1)
}

// MockBillingSource is a mock implementation of port.BillingSource.
type MockBillingSource struct {
	mock.Mock
}

func (m *MockBillingSource) LoadBilling(ctx context.Context) ([]domain.BillingCategory, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BillingCategory), args.Error(1)
}
