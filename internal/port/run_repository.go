package port

import (
	"context"

	"github.com/google/uuid"

	"billrecon/internal/domain"
)

// RunRepository persists reconciliation run history.
type RunRepository interface {
	Create(ctx context.Context, run *domain.ReconciliationRun) error
	Finish(ctx context.Context, run *domain.ReconciliationRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ReconciliationRun, error)
	List(ctx context.Context, offset, limit int) ([]domain.ReconciliationRun, int, error)
}
