package recon

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"billrecon/internal/domain"
	"billrecon/internal/port"
)

const (
	DefaultOrderItem = "CFTEST"
	DefaultOrderRef  = "API-ORDER-001"

	noteNoIDColumn = "No customer id column in billing file"
	noteBlankID    = "Row has id column but Customer Id is empty"

	lockShards = 64

	balanceTolerance = 1e-6
)

// identifierColumns names the columns that carry a row's customer identity.
type identifierColumns struct {
	ID   string
	VAT  string
	Name string
}

// knownIdentifierColumns are checked in order; the first whose id column is
// present on a category wins.
var knownIdentifierColumns = []identifierColumns{
	{ID: "Portal Customer Id", VAT: "Portal Customer VAT", Name: "Portal Customer Name"},
	{ID: "Customer Id", VAT: "Customer VAT", Name: "Customer Name"},
	{ID: "CustomerId", VAT: "CustomerVAT", Name: "CustomerName"},
}

// Options tunes a reconciliation run.
type Options struct {
	MergePolicy      domain.MergePolicy
	Workers          int
	ExpectedCurrency string
	OrderItem        string
	OrderRef         string
	InvoiceDate      string
	Simulate         bool
}

func (o Options) withDefaults() Options {
	if o.MergePolicy == "" {
		o.MergePolicy = domain.MergeByItemNameAndPrice
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.OrderItem == "" {
		o.OrderItem = DefaultOrderItem
	}
	if o.OrderRef == "" {
		o.OrderRef = DefaultOrderRef
	}
	if o.InvoiceDate == "" {
		o.InvoiceDate = time.Now().Format("2006-01-02")
	}
	return o
}

// Engine runs reconciliation passes. Every call to Run builds its own
// ledger, resolver and debtor index, so one Engine may serve many runs.
type Engine struct {
	opts    Options
	debtors port.DebtorSource
	orders  port.OrderGateway
	logger  *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(opts Options, debtors port.DebtorSource, orders port.OrderGateway, logger *zap.Logger) *Engine {
	return &Engine{
		opts:    opts.withDefaults(),
		debtors: debtors,
		orders:  orders,
		logger:  logger.With(zap.String("component", "recon.engine")),
	}
}

// run is the state of a single pass.
type run struct {
	opts     Options
	resolver *CustomerResolver
	logger   *zap.Logger
	shards   [lockShards]sync.Mutex
}

func (r *run) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &r.shards[h.Sum32()%lockShards]
}

// Run reconciles categories against customers and returns the final ledger
// snapshot. Data problems are classified into ledger buckets; only
// cancellation and a failed debtor load return an error.
func (e *Engine) Run(ctx context.Context, customers []domain.Customer, categories []domain.BillingCategory) (*domain.LedgerSnapshot, error) {
	start := time.Now()
	r := &run{
		opts:     e.opts,
		resolver: NewCustomerResolver(customers),
		logger:   e.logger,
	}

	ledger := NewLedger()
	partials := make([]*Ledger, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i := range categories {
		i := i
		partials[i] = NewLedger()
		g.Go(func() error {
			return r.processCategory(gctx, categories[i], partials[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("recon.Run: %w", err)
	}
	for _, p := range partials {
		ledger.Merge(p)
	}

	index, err := NewLazyDebtorIndex(e.debtors).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("recon.Run: %w", err)
	}
	e.logger.Info("debtor index loaded",
		zap.Int("debtors", index.Debtors()),
		zap.Int("keys", index.Len()),
	)

	meta := port.OrderMetadata{
		YourRef:     e.opts.OrderRef,
		InvoiceDate: e.opts.InvoiceDate,
		Simulate:    e.opts.Simulate,
	}
	mat := NewMaterializer(index, e.orders, ledger, meta, e.opts.OrderItem, e.logger)
	for _, inv := range r.resolver.Invoices() {
		if err := mat.Materialize(ctx, inv); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return nil, fmt.Errorf("recon.Run: %w", err)
			}
			e.logger.Warn("invoice not materialized", zap.String("customer_key", inv.Key), zap.Error(err))
		}
	}

	ledger.RecordCustomerFailures(r.resolver.Failures())

	snap := ledger.Snapshot()
	for cat, adj := range snap.Adjustments {
		e.logger.Info("invoice lines differ from billed amount",
			zap.String("category", cat),
			zap.Float64("adjustment", adj),
		)
	}
	if !ledger.Balanced(balanceTolerance) {
		e.logger.Warn("ledger does not balance", zap.Float64("unexplained", snap.Unexplained()))
	}
	e.logger.Info("reconciliation finished",
		zap.Int("categories", len(categories)),
		zap.Int("invoices", len(snap.SuccessRows)+len(snap.FailedDebtorRows)),
		zap.Float64("total_processed", snap.TotalProcessed),
		zap.Float64("total_success", snap.TotalSuccess),
		zap.Float64("total_failed_debtor", snap.TotalFailedDebtor),
		zap.Float64("total_failed_customer", snap.TotalFailedCustomer),
		zap.Float64("total_no_identifier", snap.TotalNoIdentifier),
		zap.Float64("discrepancy", snap.Discrepancy),
		zap.Float64("adjustment", snap.Adjustment),
		zap.Duration("elapsed", time.Since(start)),
	)
	return snap, nil
}

// detectIdentifierColumns returns the identifier column set present on any row.
func detectIdentifierColumns(rows []domain.Record) (identifierColumns, bool) {
	for _, cols := range knownIdentifierColumns {
		for _, row := range rows {
			if _, ok := row[cols.ID]; ok {
				return cols, true
			}
		}
	}
	return identifierColumns{}, false
}

func rowPeriod(row domain.Record) Period {
	return Period{Start: row.String(periodStartColumn), End: row.String(periodEndColumn)}
}

func (r *run) processCategory(ctx context.Context, cat domain.BillingCategory, ledger *Ledger) error {
	ledger.AddCategory(cat.Name)
	log := r.logger.With(zap.String("category", cat.Name))

	cols, hasID := detectIdentifierColumns(cat.Rows)
	if !hasID {
		log.Warn("no customer id column in billing category", zap.Int("rows", len(cat.Rows)))
	}

	warnedCurrency := make(map[string]bool)
	for _, row := range cat.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !hasID {
			addNoIdentifier(ledger, cat.Name, row, "", noteNoIDColumn)
			continue
		}

		rawID := strings.TrimSpace(row.String(cols.ID))
		vatHint := row.String(cols.VAT)
		nameHint := row.String(cols.Name)
		if rawID == "" {
			addNoIdentifier(ledger, cat.Name, row, vatHint, noteBlankID)
			continue
		}

		inv, err := r.resolver.Resolve(rawID, vatHint, nameHint, row)
		var failed *domain.CustomerInvoiceError
		if err != nil && !errors.As(err, &failed) {
			return err
		}

		period := rowPeriod(row)
		if inv != nil {
			period = Period{Start: inv.PeriodStart, End: inv.PeriodEnd}
		}

		var booked float64
		if line, ok := BuildLine(cat.Name, row, period); ok {
			if exp := r.opts.ExpectedCurrency; exp != "" && line.Currency != exp && !warnedCurrency[line.Currency] {
				warnedCurrency[line.Currency] = true
				log.Warn("unexpected currency, amounts are not converted",
					zap.String("currency", line.Currency),
					zap.String("expected", exp),
				)
			}
			if inv != nil {
				booked = r.insert(inv.Key, &inv.Categories, cat.Name, line)
			} else {
				booked = r.insert(failed.Key, &failed.Categories, cat.Name, line)
			}
		}
		ledger.AddProcessed(cat.Name, RowAmount(cat.Name, row), booked)
	}
	return nil
}

func (r *run) insert(key string, cats *domain.Categories, category string, line *domain.LineItem) float64 {
	mu := r.lock(key)
	mu.Lock()
	defer mu.Unlock()
	return InsertLine(cats.Category(category), line, r.opts.MergePolicy)
}

// addNoIdentifier books a row without a usable customer id at its billed Amount.
func addNoIdentifier(ledger *Ledger, category string, row domain.Record, vatHint, note string) {
	line := DescribeLine(category, row, rowPeriod(row))
	amount := RowAmount(category, row)
	if amount == 0 && line.Quantity == 0 {
		return
	}
	ledger.AddNoIdentifier(category, line, amount, vatHint, note)
}
