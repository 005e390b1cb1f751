package recon

import (
	"math"
	"strconv"
	"sync"

	"billrecon/internal/domain"
)

// adjustmentEpsilon hides per-category float noise from snapshots.
const adjustmentEpsilon = 1e-9

// Ledger accumulates the bucket totals and detail rows of one run. It is
// created per run and safe for concurrent use.
type Ledger struct {
	mu sync.Mutex

	processed      float64
	success        float64
	failedDebtor   float64
	failedCustomer float64
	noIdentifier   float64
	adjustment     float64
	adjustments    map[string]float64

	successRows        []domain.SuccessRow
	failedDebtorRows   []domain.FailedDebtorRow
	failedCustomerRows []domain.FailedCustomerRow
	noIdentifierRows   []domain.NoIdentifierRow

	categories []string
	seenCat    map[string]bool
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{seenCat: make(map[string]bool), adjustments: make(map[string]float64)}
}

// AddCategory records a billing category as seen by the run.
func (l *Ledger) AddCategory(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addCategory(name)
}

func (l *Ledger) addCategory(name string) {
	if name == "" || l.seenCat[name] {
		return
	}
	l.seenCat[name] = true
	l.categories = append(l.categories, name)
}

// AddProcessed adds the billed amount of a row that carried a customer
// identifier. booked is what the row added to its invoice lines; any
// difference is kept as the category's adjustment.
func (l *Ledger) AddProcessed(category string, amount, booked float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processed += amount
	if diff := booked - amount; diff != 0 {
		l.adjustment += diff
		l.adjustments[category] += diff
	}
}

// AddNoIdentifier records a row that could not be attributed to any customer.
// amount is the row's billed amount; line supplies the descriptive fields.
func (l *Ledger) AddNoIdentifier(category string, line *domain.LineItem, amount float64, vatHint, note string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.noIdentifier += amount
	l.noIdentifierRows = append(l.noIdentifierRows, domain.NoIdentifierRow{
		Category:     category,
		PeriodStart:  line.PeriodStart,
		PeriodEnd:    line.PeriodEnd,
		ItemName:     line.ItemName,
		ItemNo:       line.ItemNo,
		Quantity:     strconv.FormatFloat(line.Quantity, 'f', -1, 64),
		UnitPrice:    strconv.FormatFloat(line.UnitPrice, 'f', -1, 64),
		Amount:       amount,
		Currency:     line.Currency,
		CustomerName: line.CustomerName,
		VatID:        vatHint,
		Note:         note,
	})
}

// RecordSuccess attributes the invoice's line total to the success bucket.
func (l *Ledger) RecordSuccess(inv *domain.CustomerInvoice, account, orderNumber string) {
	total := inv.LineTotal()
	row := domain.SuccessRow{
		CustomerID:  customerField(inv, func(c *domain.Customer) string { return c.ID }),
		Name:        customerField(inv, func(c *domain.Customer) string { return c.Name }),
		VatID:       customerField(inv, func(c *domain.Customer) string { return c.VatID }),
		CountryCode: customerField(inv, func(c *domain.Customer) string { return c.CountryCode }),
		Account:     account,
		OrderNumber: orderNumber,
		LineCount:   inv.LineCount(),
		TotalAmount: total,
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.success += total
	l.successRows = append(l.successRows, row)
}

// RecordDebtorFailure attributes the invoice's line total to the failed-debtor bucket.
func (l *Ledger) RecordDebtorFailure(inv *domain.CustomerInvoice, reason string) {
	total := inv.LineTotal()
	row := domain.FailedDebtorRow{
		CustomerID:  customerField(inv, func(c *domain.Customer) string { return c.ID }),
		Name:        customerField(inv, func(c *domain.Customer) string { return c.Name }),
		VatID:       customerField(inv, func(c *domain.Customer) string { return c.VatID }),
		CountryCode: customerField(inv, func(c *domain.Customer) string { return c.CountryCode }),
		Reason:      reason,
		TotalAmount: total,
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failedDebtor += total
	l.failedDebtorRows = append(l.failedDebtorRows, row)
}

// RecordCustomerFailures attributes the lines accumulated on each unresolved
// customer id to the failed-customer bucket.
func (l *Ledger) RecordCustomerFailures(failures []*domain.CustomerInvoiceError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range failures {
		total := f.LineTotal()
		l.failedCustomer += total
		l.failedCustomerRows = append(l.failedCustomerRows, domain.FailedCustomerRow{
			CustomerID:  f.RawID,
			Name:        f.NameHint,
			VatID:       f.VatHint,
			Reason:      f.Reason,
			TotalAmount: total,
		})
	}
}

// Merge folds a partial ledger into l. The two locks are never held
// together, so ledgers may merge into each other from different goroutines.
func (l *Ledger) Merge(other *Ledger) {
	if other == nil || other == l {
		return
	}
	part := other.state()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.processed += part.processed
	l.success += part.success
	l.failedDebtor += part.failedDebtor
	l.failedCustomer += part.failedCustomer
	l.noIdentifier += part.noIdentifier
	l.adjustment += part.adjustment
	for c, v := range part.adjustments {
		l.adjustments[c] += v
	}
	l.successRows = append(l.successRows, part.successRows...)
	l.failedDebtorRows = append(l.failedDebtorRows, part.failedDebtorRows...)
	l.failedCustomerRows = append(l.failedCustomerRows, part.failedCustomerRows...)
	l.noIdentifierRows = append(l.noIdentifierRows, part.noIdentifierRows...)
	for _, c := range part.categories {
		l.addCategory(c)
	}
}

// state copies l's accumulators under its lock.
func (l *Ledger) state() *Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := &Ledger{
		processed:          l.processed,
		success:            l.success,
		failedDebtor:       l.failedDebtor,
		failedCustomer:     l.failedCustomer,
		noIdentifier:       l.noIdentifier,
		adjustment:         l.adjustment,
		adjustments:        make(map[string]float64, len(l.adjustments)),
		successRows:        append([]domain.SuccessRow{}, l.successRows...),
		failedDebtorRows:   append([]domain.FailedDebtorRow{}, l.failedDebtorRows...),
		failedCustomerRows: append([]domain.FailedCustomerRow{}, l.failedCustomerRows...),
		noIdentifierRows:   append([]domain.NoIdentifierRow{}, l.noIdentifierRows...),
		categories:         append([]string{}, l.categories...),
	}
	for c, v := range l.adjustments {
		cp.adjustments[c] = v
	}
	return cp
}

// Snapshot returns a copy of the ledger state at full precision.
func (l *Ledger) Snapshot() *domain.LedgerSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &domain.LedgerSnapshot{
		TotalProcessed:      l.processed,
		TotalSuccess:        l.success,
		TotalFailedDebtor:   l.failedDebtor,
		TotalFailedCustomer: l.failedCustomer,
		TotalNoIdentifier:   l.noIdentifier,
		Discrepancy:         l.processed - (l.success + l.failedDebtor + l.failedCustomer),
		Adjustment:          l.adjustment,
		Adjustments:         l.significantAdjustments(),
		SuccessRows:         append([]domain.SuccessRow{}, l.successRows...),
		FailedDebtorRows:    append([]domain.FailedDebtorRow{}, l.failedDebtorRows...),
		FailedCustomerRows:  append([]domain.FailedCustomerRow{}, l.failedCustomerRows...),
		NoIdentifierRows:    append([]domain.NoIdentifierRow{}, l.noIdentifierRows...),
		Categories:          append([]string{}, l.categories...),
	}
}

func (l *Ledger) significantAdjustments() map[string]float64 {
	out := make(map[string]float64)
	for c, v := range l.adjustments {
		if math.Abs(v) > adjustmentEpsilon {
			out[c] = v
		}
	}
	return out
}

// Balanced reports whether the customer-bearing buckets account for every
// processed amount plus the recorded adjustments within tolerance.
func (l *Ledger) Balanced(tolerance float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return math.Abs(l.processed+l.adjustment-(l.success+l.failedDebtor+l.failedCustomer)) <= tolerance
}

func customerField(inv *domain.CustomerInvoice, get func(*domain.Customer) string) string {
	if inv.Customer == nil {
		return ""
	}
	return get(inv.Customer)
}
