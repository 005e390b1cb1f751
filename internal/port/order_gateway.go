package port

import (
	"context"

	"billrecon/internal/domain"
)

// OrderMetadata carries the header fields of a newly created ERP order.
type OrderMetadata struct {
	YourRef     string
	InvoiceDate string
	Simulate    bool
}

// OrderLine is one line submitted against an ERP order.
type OrderLine struct {
	OrderNumber string  `json:"OrderNumber"`
	Item        string  `json:"Item"`
	Text        string  `json:"Text"`
	Qty         float64 `json:"Qty"`
	Total       float64 `json:"Total"`
}

// OrderGateway abstracts order query, creation and line submission in the ERP.
type OrderGateway interface {
	FindOrders(ctx context.Context, account string) ([]domain.Record, error)
	CreateOrder(ctx context.Context, debtor *domain.Debtor, meta OrderMetadata) (string, error)
	SubmitLines(ctx context.Context, orderNumber string, lines []OrderLine) error
}

// OrderPurger lists and deletes ERP orders created by earlier runs.
type OrderPurger interface {
	ListOrdersByRef(ctx context.Context, yourRef string) ([]domain.Record, error)
	DeleteOrders(ctx context.Context, orders []domain.Record) error
}
