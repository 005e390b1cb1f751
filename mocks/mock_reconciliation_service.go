package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"billrecon/internal/domain"
	"billrecon/internal/service"
)

// MockReconciliationService is a mock implementation of service.ReconciliationService.
type MockReconciliationService struct {
	mock.Mock
}

func (m *MockReconciliationService) Run(ctx context.Context, req service.RunRequest) (*domain.ReconciliationRun, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReconciliationRun), args.Error(1)
}

func (m *MockReconciliationService) GetRun(ctx context.Context, id uuid.UUID) (*domain.ReconciliationRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReconciliationRun), args.Error(1)
}

func (m *MockReconciliationService) ListRuns(ctx context.Context, offset, limit int) ([]domain.ReconciliationRun, int, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.ReconciliationRun), args.Int(1), args.Error(2)
}

func (m *MockReconciliationService) ReportURL(ctx context.Context, id uuid.UUID, file string) (string, error) {
	args := m.Called(ctx, id, file)
	return args.String(0), args.Error(1)
}

func (m *MockReconciliationService) PurgeOrders(ctx context.Context, yourRef string, dryRun bool) (*service.PurgeResult, error) {
	args := m.Called(ctx, yourRef, dryRun)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PurgeResult), args.Error(1)
}
