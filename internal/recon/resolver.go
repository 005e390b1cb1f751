package recon

import (
	"fmt"
	"strings"
	"sync"

	"billrecon/internal/domain"
)

const (
	reasonNoMatch      = "no match found for customer with name: %s with vatid: %s"
	reasonAmbiguous    = "to many matches found for customer with name: %s with vatid: %s"
	reasonBlankID      = "customer id is blank (name: %s, vatid: %s)"
	periodStartColumn  = "Start Date"
	periodEndColumn    = "End Date"
	unknownPeriodValue = "ERROR"
)

// CustomerResolver maps raw vendor customer ids to CustomerInvoices. Results
// are memoized per run: the same id always yields the same instance, which is
// what lets rows from many categories accumulate onto one invoice.
type CustomerResolver struct {
	master []domain.Customer

	mu       sync.Mutex
	invoices map[string]*domain.CustomerInvoice
	failures map[string]*domain.CustomerInvoiceError
	invOrder []string
	errOrder []string
}

// NewCustomerResolver creates a resolver over the run's customer master list.
func NewCustomerResolver(master []domain.Customer) *CustomerResolver {
	return &CustomerResolver{
		master:   master,
		invoices: make(map[string]*domain.CustomerInvoice),
		failures: make(map[string]*domain.CustomerInvoiceError),
	}
}

// Resolve returns the CustomerInvoice for rawID. When the id matches zero or
// several master customers the returned error is a *domain.CustomerInvoiceError,
// cached and returned again for every later occurrence of the id.
func (r *CustomerResolver) Resolve(rawID, vatHint, nameHint string, row domain.Record) (*domain.CustomerInvoice, error) {
	key := NormalizeCustomerID(rawID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if inv, ok := r.invoices[key]; ok {
		return inv, nil
	}
	if failed, ok := r.failures[key]; ok {
		return nil, failed
	}

	if key == "" {
		return nil, r.fail(key, rawID, vatHint, nameHint, reasonBlankID)
	}

	var matches []*domain.Customer
	for i := range r.master {
		if strings.EqualFold(strings.TrimSpace(r.master[i].ID), key) {
			matches = append(matches, &r.master[i])
		}
	}

	switch len(matches) {
	case 0:
		return nil, r.fail(key, rawID, vatHint, nameHint, reasonNoMatch)
	case 1:
		inv := &domain.CustomerInvoice{
			Key:         key,
			Customer:    matches[0],
			PeriodStart: periodValue(row, periodStartColumn),
			PeriodEnd:   periodValue(row, periodEndColumn),
		}
		r.invoices[key] = inv
		r.invOrder = append(r.invOrder, key)
		return inv, nil
	default:
		return nil, r.fail(key, rawID, vatHint, nameHint, reasonAmbiguous)
	}
}

func (r *CustomerResolver) fail(key, rawID, vatHint, nameHint, format string) *domain.CustomerInvoiceError {
	failed := &domain.CustomerInvoiceError{
		Key:      key,
		RawID:    rawID,
		NameHint: nameHint,
		VatHint:  vatHint,
		Reason:   fmt.Sprintf(format, nameHint, vatHint),
	}
	r.failures[key] = failed
	r.errOrder = append(r.errOrder, key)
	return failed
}

// Invoices returns the resolved invoices in first-seen order.
func (r *CustomerResolver) Invoices() []*domain.CustomerInvoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.CustomerInvoice, 0, len(r.invOrder))
	for _, k := range r.invOrder {
		out = append(out, r.invoices[k])
	}
	return out
}

// Failures returns the unresolvable ids in first-seen order.
func (r *CustomerResolver) Failures() []*domain.CustomerInvoiceError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.CustomerInvoiceError, 0, len(r.errOrder))
	for _, k := range r.errOrder {
		out = append(out, r.failures[k])
	}
	return out
}

func periodValue(row domain.Record, column string) string {
	if row.Has(column) {
		return row.String(column)
	}
	return unknownPeriodValue
}
