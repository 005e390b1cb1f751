package dryrun

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"billrecon/internal/domain"
	"billrecon/internal/port"
)

// Order is an order the gateway pretended to create.
type Order struct {
	Number  string
	Account string
	Meta    port.OrderMetadata
	Lines   []port.OrderLine
}

// Gateway is an OrderGateway that never writes to the ERP. Existing orders
// are looked up through reader when one is set; created orders get synthetic
// numbers and their lines are kept in memory.
type Gateway struct {
	reader port.OrderGateway
	logger *zap.Logger

	mu     sync.Mutex
	seq    int
	orders []*Order
	byNum  map[string]*Order
}

var _ port.OrderGateway = (*Gateway)(nil)

// NewGateway creates a dry-run gateway. reader may be nil.
func NewGateway(reader port.OrderGateway, logger *zap.Logger) *Gateway {
	return &Gateway{
		reader: reader,
		logger: logger.With(zap.String("component", "dryrun.gateway")),
		byNum:  make(map[string]*Order),
	}
}

func (g *Gateway) FindOrders(ctx context.Context, account string) ([]domain.Record, error) {
	if g.reader != nil {
		return g.reader.FindOrders(ctx, account)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	var found []domain.Record
	for _, o := range g.orders {
		if o.Account == account {
			found = append(found, domain.Record{"OrderNumber": o.Number, "Account": o.Account, "YourRef": o.Meta.YourRef})
		}
	}
	return found, nil
}

func (g *Gateway) CreateOrder(_ context.Context, debtor *domain.Debtor, meta port.OrderMetadata) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	o := &Order{Number: fmt.Sprintf("DRY-%05d", g.seq), Account: debtor.Account(), Meta: meta}
	g.orders = append(g.orders, o)
	g.byNum[o.Number] = o
	g.logger.Debug("order simulated", zap.String("account", o.Account), zap.String("order_number", o.Number))
	return o.Number, nil
}

func (g *Gateway) SubmitLines(_ context.Context, orderNumber string, lines []port.OrderLine) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.byNum[orderNumber]
	if !ok {
		// lines against an order that exists in the ERP
		o = &Order{Number: orderNumber}
		g.orders = append(g.orders, o)
		g.byNum[orderNumber] = o
	}
	o.Lines = append(o.Lines, lines...)
	return nil
}

// Orders returns the orders touched so far, in creation order.
func (g *Gateway) Orders() []Order {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Order, 0, len(g.orders))
	for _, o := range g.orders {
		cp := *o
		cp.Lines = append([]port.OrderLine(nil), o.Lines...)
		out = append(out, cp)
	}
	return out
}
