package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"

	"billrecon/internal/auth"
)

// MockTokenService is a mock implementation of auth.TokenService.
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Issue(subject string, ttl time.Duration) (*auth.Token, error) {
	args := m.Called(subject, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Token), args.Error(1)
}

func (m *MockTokenService) Validate(tokenString string) (*auth.Claims, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Claims), args.Error(1)
}
