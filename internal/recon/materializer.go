package recon

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"billrecon/internal/domain"
	"billrecon/internal/port"
)

const reasonNoDebtor = "no debtor"

// Materializer turns resolved invoices into ERP orders and reports each
// outcome to the ledger.
type Materializer struct {
	index  *DebtorIndex
	orders port.OrderGateway
	ledger *Ledger
	meta   port.OrderMetadata
	item   string
	logger *zap.Logger
}

// NewMaterializer creates a Materializer. item is the ERP item number used on
// every submitted order line.
func NewMaterializer(index *DebtorIndex, orders port.OrderGateway, ledger *Ledger, meta port.OrderMetadata, item string, logger *zap.Logger) *Materializer {
	return &Materializer{
		index:  index,
		orders: orders,
		ledger: ledger,
		meta:   meta,
		item:   item,
		logger: logger.With(zap.String("component", "materializer")),
	}
}

// Materialize posts inv as one ERP order. Failures are recorded in the
// failed-debtor bucket and returned for logging; they are never fatal to a run.
func (m *Materializer) Materialize(ctx context.Context, inv *domain.CustomerInvoice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	debtor, err := m.index.FindDebtor(inv.Customer)
	if err != nil {
		reason := reasonNoDebtor
		if errors.Is(err, domain.ErrMissingIdentifier) {
			reason = fmt.Sprintf("%s: %s", reasonNoDebtor, err)
		}
		m.ledger.RecordDebtorFailure(inv, reason)
		return fmt.Errorf("recon.Materialize %s: %w", inv.Key, err)
	}
	account := debtor.Account()

	orderNumber, err := m.findOrCreateOrder(ctx, debtor)
	if err != nil {
		m.ledger.RecordDebtorFailure(inv, err.Error())
		return fmt.Errorf("recon.Materialize %s: %w", inv.Key, err)
	}

	lines := m.orderLines(inv, orderNumber)
	if len(lines) > 0 {
		if err := m.orders.SubmitLines(ctx, orderNumber, lines); err != nil {
			m.ledger.RecordDebtorFailure(inv, err.Error())
			return fmt.Errorf("recon.Materialize %s: %w: %w", inv.Key, domain.ErrOrderSubmission, err)
		}
	}

	m.logger.Debug("order materialized",
		zap.String("customer_id", inv.Customer.ID),
		zap.String("account", account),
		zap.String("order_number", orderNumber),
		zap.Int("lines", len(lines)),
	)
	m.ledger.RecordSuccess(inv, account, orderNumber)
	return nil
}

func (m *Materializer) findOrCreateOrder(ctx context.Context, debtor *domain.Debtor) (string, error) {
	existing, err := m.orders.FindOrders(ctx, debtor.Account())
	if err != nil {
		return "", fmt.Errorf("finding orders for %s: %w", debtor.Account(), err)
	}
	if len(existing) > 0 {
		return existing[0].String("OrderNumber"), nil
	}
	orderNumber, err := m.orders.CreateOrder(ctx, debtor, m.meta)
	if err != nil {
		return "", fmt.Errorf("creating order for %s: %w", debtor.Account(), err)
	}
	return orderNumber, nil
}

func (m *Materializer) orderLines(inv *domain.CustomerInvoice, orderNumber string) []port.OrderLine {
	var lines []port.OrderLine
	inv.Each(func(cat *domain.InvoiceCategory) {
		for _, l := range cat.Lines {
			if l.Amount == 0 {
				continue
			}
			lines = append(lines, port.OrderLine{
				OrderNumber: orderNumber,
				Item:        m.item,
				Text:        l.ItemName,
				Qty:         l.Quantity,
				Total:       l.Amount,
			})
		}
	})
	return lines
}
