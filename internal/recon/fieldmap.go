package recon

import "billrecon/internal/domain"

// FailedValue is substituted for descriptive fields missing from a billing row.
const FailedValue = "Failed"

// Column is a descriptive field extractor: the first present column wins,
// otherwise Default (or FailedValue when Default is empty). A Column with no
// names is a constant.
type Column struct {
	Names   []string
	Default string
}

func (c Column) extract(row domain.Record) string {
	if key, ok := row.First(c.Names...); ok {
		return row.String(key)
	}
	if c.Default != "" {
		return c.Default
	}
	return FailedValue
}

// NumericColumn extracts a number from the first present column. Fixed, when
// set, overrides the row entirely.
type NumericColumn struct {
	Names []string
	Fixed *float64
}

// extract returns the value and whether a column for it was present.
func (c NumericColumn) extract(row domain.Record) (float64, bool) {
	if c.Fixed != nil {
		return *c.Fixed, true
	}
	key, ok := row.First(c.Names...)
	if !ok {
		return 0, false
	}
	return row.Float(key), true
}

// FieldMapping describes how one vendor category's spreadsheet columns map
// onto a LineItem.
type FieldMapping struct {
	ProductFamily Column
	ItemName      Column
	ItemNo        Column
	Units         Column
	Currency      Column
	CustomerName  Column

	Amount    NumericColumn
	Quantity  NumericColumn
	UnitPrice NumericColumn

	// AmountFromUnitPrice bills quantity times unit price instead of reading Amount.
	AmountFromUnitPrice bool
	// RowPeriod reads Start Date / End Date from the row instead of the invoice period.
	RowPeriod bool
}

var (
	amountColumns       = []string{"Amount"}
	quantityColumns     = []string{"Quantity"}
	unitPriceColumns    = []string{"Unit Price", "UnitPrice"}
	itemNoColumns       = []string{"Item No", "ItemNo"}
	currencyColumns     = []string{"Currency"}
	customerNameColumns = []string{"Portal Customer Name", "Customer Name", "CustomerName"}
	itemNameColumns     = []string{"Item Name", "ItemName"}
)

func constant(v string) Column { return Column{Default: v} }

func fixed(v float64) *float64 { return &v }

// defaultMapping applies to categories without a dedicated entry.
var defaultMapping = FieldMapping{
	ProductFamily: Column{Names: []string{"Product Family", "ProductFamily"}},
	ItemName:      Column{Names: append(append([]string{}, itemNameColumns...), "Description")},
	ItemNo:        Column{Names: itemNoColumns},
	Units:         constant("stk"),
	Currency:      Column{Names: currencyColumns},
	CustomerName:  Column{Names: customerNameColumns},
	Amount:        NumericColumn{Names: amountColumns},
	Quantity:      NumericColumn{Names: quantityColumns},
	UnitPrice:     NumericColumn{Names: unitPriceColumns},
}

// fieldMappings holds the per-category overrides of defaultMapping.
var fieldMappings = map[domain.CategoryName]FieldMapping{
	domain.CategoryExclaimer: withDefaults(FieldMapping{
		ProductFamily: Column{Names: []string{"Subscription Name"}},
		ItemName:      Column{Names: itemNameColumns},
	}),
	domain.CategorySPLA: withDefaults(FieldMapping{
		ProductFamily: Column{Names: []string{"Product Family"}},
		ItemName:      Column{Names: itemNameColumns},
		RowPeriod:     true,
	}),
	domain.CategoryMicrosoftCSP: withDefaults(FieldMapping{
		ProductFamily: Column{Names: []string{"Description"}},
		ItemName:      Column{Names: []string{"Nickname"}},
		RowPeriod:     true,
	}),
	domain.CategoryKeepit: withDefaults(FieldMapping{
		ProductFamily: Column{Names: []string{"Connector"}},
		ItemName:      Column{Names: itemNameColumns},
		RowPeriod:     true,
	}),
	domain.CategoryAcronis: withDefaults(FieldMapping{
		ProductFamily: Column{Names: []string{"Description"}},
		ItemName:      Column{Names: itemNameColumns},
		Units:         Column{Names: []string{"Unit"}},
	}),
	domain.CategoryDropbox: withDefaults(FieldMapping{
		ProductFamily: constant("Dropbox"),
		ItemName:      Column{Names: []string{"Description"}},
		Quantity:      NumericColumn{Names: []string{"License Quantity"}},
	}),
	domain.CategoryImpossibleCloud: withDefaults(FieldMapping{
		ProductFamily:       constant("cloud service"),
		ItemName:            constant("cloud service"),
		UnitPrice:           NumericColumn{Fixed: fixed(50)},
		AmountFromUnitPrice: true,
	}),
	domain.CategoryMicrosoftAzure: withDefaults(FieldMapping{
		ProductFamily: Column{Names: []string{"Product Group"}},
		ItemName:      Column{Names: []string{"Description"}},
		ItemNo:        Column{Names: []string{"Product Id"}},
	}),
}

// withDefaults fills every zero-valued field of m from defaultMapping.
func withDefaults(m FieldMapping) FieldMapping {
	fill := func(c *Column, d Column) {
		if len(c.Names) == 0 && c.Default == "" {
			*c = d
		}
	}
	fillNum := func(c *NumericColumn, d NumericColumn) {
		if len(c.Names) == 0 && c.Fixed == nil {
			*c = d
		}
	}
	fill(&m.ProductFamily, defaultMapping.ProductFamily)
	fill(&m.ItemName, defaultMapping.ItemName)
	fill(&m.ItemNo, defaultMapping.ItemNo)
	fill(&m.Units, defaultMapping.Units)
	fill(&m.Currency, defaultMapping.Currency)
	fill(&m.CustomerName, defaultMapping.CustomerName)
	fillNum(&m.Amount, defaultMapping.Amount)
	fillNum(&m.Quantity, defaultMapping.Quantity)
	fillNum(&m.UnitPrice, defaultMapping.UnitPrice)
	return m
}

// MappingFor returns the field mapping for a category, falling back to the default.
func MappingFor(category string) FieldMapping {
	if m, ok := fieldMappings[domain.CategoryName(category)]; ok {
		return m
	}
	return defaultMapping
}
