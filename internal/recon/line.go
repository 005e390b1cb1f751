package recon

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"billrecon/internal/domain"
)

const (
	unitPricePlaces = 5
	quantityEpsilon = 1e-5
)

// Period is the billing period attached to a line when its row carries none.
type Period struct {
	Start string
	End   string
}

// round rounds half away from zero to places decimals.
func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// RowAmount returns the billed Amount of a row as the category's mapping reads
// it, before any remapping such as fixed-price categories.
func RowAmount(category string, row domain.Record) float64 {
	v, _ := MappingFor(category).Amount.extract(row)
	return v
}

// DescribeLine converts a billing row into a LineItem using the category's
// field mapping, keeping rows whose amount and quantity are both zero.
func DescribeLine(category string, row domain.Record, period Period) *domain.LineItem {
	m := MappingFor(category)

	qty, _ := m.Quantity.extract(row)
	unitPrice, hasUnitPrice := m.UnitPrice.extract(row)

	var amount float64
	if m.AmountFromUnitPrice {
		amount = qty * unitPrice
	} else {
		amount, _ = m.Amount.extract(row)
	}
	// Derived prices stay at full precision so qty*price reproduces the amount.
	if !hasUnitPrice && qty != 0 {
		unitPrice = amount / qty
	}

	line := &domain.LineItem{
		ProductFamily: m.ProductFamily.extract(row),
		ItemName:      m.ItemName.extract(row),
		ItemNo:        m.ItemNo.extract(row),
		CustomerName:  m.CustomerName.extract(row),
		Amount:        amount,
		Units:         m.Units.extract(row),
		Currency:      m.Currency.extract(row),
		Quantity:      qty,
		UnitPrice:     unitPrice,
		PeriodStart:   period.Start,
		PeriodEnd:     period.End,
	}
	if m.RowPeriod {
		line.PeriodStart = Column{Names: []string{periodStartColumn}, Default: period.Start}.extract(row)
		line.PeriodEnd = Column{Names: []string{periodEndColumn}, Default: period.End}.extract(row)
	}
	return line
}

// BuildLine is DescribeLine that returns false for rows whose amount and
// quantity are both zero.
func BuildLine(category string, row domain.Record, period Period) (*domain.LineItem, bool) {
	line := DescribeLine(category, row, period)
	if line.Amount == 0 && line.Quantity == 0 {
		return nil, false
	}
	return line, true
}

func normalizeItemName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// CanMerge reports whether incoming may be folded into existing under policy.
// A zero-quantity line never merges: its amount cannot be re-derived from
// quantity times unit price.
func CanMerge(existing, incoming *domain.LineItem, policy domain.MergePolicy) bool {
	if incoming.Quantity == 0 {
		return false
	}
	if normalizeItemName(existing.ItemName) != normalizeItemName(incoming.ItemName) {
		return false
	}
	if policy == domain.MergeByItemNameAndPrice {
		return round(existing.UnitPrice, unitPricePlaces) == round(incoming.UnitPrice, unitPricePlaces)
	}
	return true
}

// Merge folds incoming into existing in place. The incoming contribution is
// re-derived from quantity times unit price, and the unit price is recomputed
// as the weighted average rounded to 5 decimals. It returns the amount added.
func Merge(existing, incoming *domain.LineItem) float64 {
	added := incoming.Quantity * incoming.UnitPrice
	existing.Quantity += incoming.Quantity
	existing.Amount += added

	if math.Abs(round(existing.Quantity, unitPricePlaces)) < quantityEpsilon {
		if existing.Quantity < 0 {
			existing.Quantity = -1
		} else {
			existing.Quantity = 1
		}
	}
	existing.UnitPrice = round(existing.Amount/existing.Quantity, unitPricePlaces)
	return added
}

// InsertLine merges line into the first compatible line of cat, or appends it.
// It returns the amount the category gained.
func InsertLine(cat *domain.InvoiceCategory, line *domain.LineItem, policy domain.MergePolicy) float64 {
	for _, existing := range cat.Lines {
		if CanMerge(existing, line, policy) {
			return Merge(existing, line)
		}
	}
	cat.Lines = append(cat.Lines, line)
	return line.Amount
}
