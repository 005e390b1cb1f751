package recon

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"billrecon/internal/domain"
	"billrecon/internal/port"
)

// identifierFieldTokens mark a debtor field as a VAT/registration container.
var identifierFieldTokens = []string{"vat", "cvr", "regno"}

// IsIdentifierField reports whether a debtor field name carries an identifier.
func IsIdentifierField(name string) bool {
	lower := strings.ToLower(name)
	if lower == "account" {
		return true
	}
	for _, tok := range identifierFieldTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// DebtorIndex maps normalized identifiers to debtor records in load order.
// It is immutable after construction and safe for concurrent access.
type DebtorIndex struct {
	byKey   map[string][]*domain.Debtor
	debtors int
}

// BuildDebtorIndex indexes every debtor under each normalized identifier found on it.
func BuildDebtorIndex(records []domain.Record) *DebtorIndex {
	idx := &DebtorIndex{byKey: make(map[string][]*domain.Debtor), debtors: len(records)}
	for i := range records {
		debtor := &domain.Debtor{Fields: records[i]}

		// Field iteration order is random; sort so a record's keys are stable.
		names := make([]string, 0, len(records[i]))
		for name := range records[i] {
			names = append(names, name)
		}
		sort.Strings(names)

		seen := make(map[string]bool)
		for _, name := range names {
			if !IsIdentifierField(name) || !records[i].Has(name) {
				continue
			}
			key := Normalize(records[i].String(name))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			idx.byKey[key] = append(idx.byKey[key], debtor)
		}
	}
	return idx
}

// Lookup returns the debtors indexed under an already-normalized key.
func (d *DebtorIndex) Lookup(key string) []*domain.Debtor {
	if d == nil || key == "" {
		return nil
	}
	return d.byKey[key]
}

// Len returns the number of distinct identifier keys.
func (d *DebtorIndex) Len() int { return len(d.byKey) }

// Debtors returns the number of records the index was built from.
func (d *DebtorIndex) Debtors() int { return d.debtors }

// FindDebtor resolves a customer to the first debtor reachable under any of
// its candidate identifiers, probing candidates in order.
func (d *DebtorIndex) FindDebtor(c *domain.Customer) (*domain.Debtor, error) {
	if !c.HasIdentifier() {
		return nil, domain.ErrMissingIdentifier
	}
	for _, cand := range Candidates(c) {
		if matches := d.Lookup(Normalize(cand)); len(matches) > 0 {
			return matches[0], nil
		}
	}
	return nil, domain.ErrNoDebtorMatch
}

// LazyDebtorIndex builds the index from a DebtorSource on first use and
// keeps it for the rest of the run. A failed load is not cached.
type LazyDebtorIndex struct {
	source port.DebtorSource

	mu     sync.Mutex
	loaded bool
	index  *DebtorIndex
}

// NewLazyDebtorIndex creates a LazyDebtorIndex over source.
func NewLazyDebtorIndex(source port.DebtorSource) *LazyDebtorIndex {
	return &LazyDebtorIndex{source: source}
}

// Get returns the index, loading the debtor dump the first time it is called.
func (l *LazyDebtorIndex) Get(ctx context.Context) (*DebtorIndex, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return l.index, nil
	}
	records, err := l.source.LoadDebtors(ctx)
	if err != nil {
		return nil, fmt.Errorf("recon.LoadDebtors: %w", err)
	}
	l.index = BuildDebtorIndex(records)
	l.loaded = true
	return l.index, nil
}

// Loaded reports whether the index has been built.
func (l *LazyDebtorIndex) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}
