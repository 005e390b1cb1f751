package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"billrecon/internal/domain"
)

// MockEmailSender is a mock implementation of port.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendRunSummary(ctx context.Context, recipients []string, run *domain.ReconciliationRun, snapshot *domain.LedgerSnapshot) error {
	args := m.Called(ctx, recipients, run, snapshot)
	return args.Error(0)
}
