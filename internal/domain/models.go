package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Customer is a vendor-side customer from the customer master list.
type Customer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	VatID       string `json:"vat_id"`
	CountryCode string `json:"country_code"`
	ExternalID  string `json:"external_id"`
}

// HasIdentifier reports whether the customer carries a VAT/registration id.
func (c *Customer) HasIdentifier() bool {
	return c != nil && c.VatID != ""
}

// Debtor is an accounting-system counterparty record. Debtors are shared by
// pointer so one record reachable under several identifiers stays one object.
type Debtor struct {
	Fields Record
}

// Account returns the debtor's account number.
func (d *Debtor) Account() string { return d.Fields.String("Account") }

// Name returns the debtor's display name.
func (d *Debtor) Name() string { return d.Fields.String("Name") }

// LineItem is the canonical, mergeable representation of a billed product quantity.
type LineItem struct {
	ProductFamily string  `json:"product_family"`
	ItemName      string  `json:"item_name"`
	ItemNo        string  `json:"item_no"`
	CustomerName  string  `json:"customer_name"`
	Amount        float64 `json:"amount"`
	Units         string  `json:"units"`
	Currency      string  `json:"currency"`
	Quantity      float64 `json:"quantity"`
	UnitPrice     float64 `json:"unit_price"`
	PeriodStart   string  `json:"period_start"`
	PeriodEnd     string  `json:"period_end"`
}

// String renders the line for log output.
func (l *LineItem) String() string {
	return fmt.Sprintf("%s - %s (%g)", l.CustomerName, l.ItemName, l.Quantity)
}

// InvoiceCategory groups the lines of one vendor billing category.
type InvoiceCategory struct {
	Name  string      `json:"name"`
	Lines []*LineItem `json:"lines"`
}

// Categories is an insertion-ordered set of invoice categories.
type Categories struct {
	ByName map[string]*InvoiceCategory `json:"categories"`
	Order  []string                    `json:"-"`
}

// Category returns the named category, creating it on first use.
func (c *Categories) Category(name string) *InvoiceCategory {
	if c.ByName == nil {
		c.ByName = make(map[string]*InvoiceCategory)
	}
	if cat, ok := c.ByName[name]; ok {
		return cat
	}
	cat := &InvoiceCategory{Name: name}
	c.ByName[name] = cat
	c.Order = append(c.Order, name)
	return cat
}

// Each visits categories in the order they were created.
func (c *Categories) Each(fn func(*InvoiceCategory)) {
	for _, name := range c.Order {
		fn(c.ByName[name])
	}
}

// LineTotal sums the amount of every line across all categories.
func (c *Categories) LineTotal() float64 {
	total := 0.0
	c.Each(func(cat *InvoiceCategory) {
		for _, l := range cat.Lines {
			total += l.Amount
		}
	})
	return total
}

// LineCount returns the number of lines across all categories.
func (c *Categories) LineCount() int {
	n := 0
	c.Each(func(cat *InvoiceCategory) { n += len(cat.Lines) })
	return n
}

// CustomerInvoice accumulates the lines billed to one resolved customer during a run.
type CustomerInvoice struct {
	Key         string    `json:"key"`
	Customer    *Customer `json:"customer"`
	PeriodStart string    `json:"period_start"`
	PeriodEnd   string    `json:"period_end"`
	Categories
}

// CustomerInvoiceError is the terminal variant for a raw customer id that
// matched zero or several master records. Rows resolving to it still collect
// lines so their amount is reported in the failed-customer bucket.
type CustomerInvoiceError struct {
	Key      string `json:"key"`
	RawID    string `json:"raw_id"`
	NameHint string `json:"name_hint"`
	VatHint  string `json:"vat_hint"`
	Reason   string `json:"reason"`
	Categories
}

func (e *CustomerInvoiceError) Error() string {
	return e.Reason
}

// BillingCategory is one vendor billing workbook: a category name plus its rows.
type BillingCategory struct {
	Name string
	Rows []Record
}

// ReconciliationRun is the persisted history entry for one reconciliation pass.
type ReconciliationRun struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	Status              RunStatus       `db:"status" json:"status"`
	Trigger             RunTrigger      `db:"trigger" json:"trigger"`
	DryRun              bool            `db:"dry_run" json:"dry_run"`
	TotalProcessed      float64         `db:"total_processed" json:"total_processed"`
	TotalSuccess        float64         `db:"total_success" json:"total_success"`
	TotalFailedDebtor   float64         `db:"total_failed_debtor" json:"total_failed_debtor"`
	TotalFailedCustomer float64         `db:"total_failed_customer" json:"total_failed_customer"`
	TotalNoIdentifier   float64         `db:"total_no_identifier" json:"total_no_identifier"`
	Snapshot            json.RawMessage `db:"snapshot" json:"snapshot,omitempty"`
	ReportLocation      string          `db:"report_location" json:"report_location"`
	Error               string          `db:"error" json:"error,omitempty"`
	StartedAt           time.Time       `db:"started_at" json:"started_at"`
	FinishedAt          *time.Time      `db:"finished_at" json:"finished_at"`
}
