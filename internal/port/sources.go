package port

import (
	"context"

	"billrecon/internal/domain"
)

// CustomerSource supplies the vendor customer master list for a run.
type CustomerSource interface {
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
}

// DebtorSource supplies the bulk dump of accounting-system debtor records.
type DebtorSource interface {
	LoadDebtors(ctx context.Context) ([]domain.Record, error)
}

// BillingSource supplies the vendor billing rows grouped by category.
type BillingSource interface {
	LoadBilling(ctx context.Context) ([]domain.BillingCategory, error)
}
