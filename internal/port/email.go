package port

import (
	"context"

	"billrecon/internal/domain"
)

// EmailSender defines the contract for sending run notifications.
type EmailSender interface {
	SendRunSummary(ctx context.Context, recipients []string, run *domain.ReconciliationRun, snapshot *domain.LedgerSnapshot) error
}
