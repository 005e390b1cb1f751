package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"billrecon/internal/domain"
	"billrecon/internal/port"
)

// MockOrderGateway is a mock implementation of port.OrderGateway.
type MockOrderGateway struct {
	mock.Mock
}

func (m *MockOrderGateway) FindOrders(ctx context.Context, account string) ([]domain.Record, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Record), args.Error(1)
}

func (m *MockOrderGateway) CreateOrder(ctx context.Context, debtor *domain.Debtor, meta port.OrderMetadata) (string, error) {
	args := m.Called(ctx, debtor, meta)
	return args.String(0), args.Error(1)
}

func (m *MockOrderGateway) SubmitLines(ctx context.Context, orderNumber string, lines []port.OrderLine) error {
	args := m.Called(ctx, orderNumber, lines)
	return args.Error(0)
}

// MockOrderPurger is a mock implementation of port.OrderPurger.
type MockOrderPurger struct {
	mock.Mock
}

func (m *MockOrderPurger) ListOrdersByRef(ctx context.Context, yourRef string) ([]domain.Record, error) {
	args := m.Called(ctx, yourRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Record), args.Error(1)
}

func (m *MockOrderPurger) DeleteOrders(ctx context.Context, orders []domain.Record) error {
	args := m.Called(ctx, orders)
	return args.Error(0)
}
