package domain

// LedgerSnapshot is the exported, serializable state of a finished run.
// Totals are kept at full precision; exporters round to 2 decimals.
type LedgerSnapshot struct {
	TotalProcessed      float64 `json:"total_processed"`
	TotalSuccess        float64 `json:"total_success"`
	TotalFailedDebtor   float64 `json:"total_failed_debtor"`
	TotalFailedCustomer float64 `json:"total_failed_customer"`
	TotalNoIdentifier   float64 `json:"total_no_identifier"`

	// Discrepancy is TotalProcessed minus the three customer-bearing buckets.
	Discrepancy float64 `json:"discrepancy"`

	// Adjustment is what invoice lines carry beyond the billed Amount of
	// their rows, such as fixed-price categories. Adjustments breaks it down
	// per category. Discrepancy + Adjustment is zero for a balanced run.
	Adjustment  float64            `json:"adjustment"`
	Adjustments map[string]float64 `json:"adjustments,omitempty"`

	SuccessRows        []SuccessRow        `json:"success_rows"`
	FailedDebtorRows   []FailedDebtorRow   `json:"failed_debtor_rows"`
	FailedCustomerRows []FailedCustomerRow `json:"failed_customer_rows"`
	NoIdentifierRows   []NoIdentifierRow   `json:"no_identifier_rows"`

	Categories []string `json:"categories"`
}

// GrandTotal is the billed total across every input row, identified or not.
func (s *LedgerSnapshot) GrandTotal() float64 {
	return s.TotalProcessed + s.TotalNoIdentifier
}

// Unexplained is the part of Discrepancy not covered by Adjustment.
func (s *LedgerSnapshot) Unexplained() float64 {
	return s.Discrepancy + s.Adjustment
}

// BucketTotal sums the four partition buckets.
func (s *LedgerSnapshot) BucketTotal() float64 {
	return s.TotalSuccess + s.TotalFailedDebtor + s.TotalFailedCustomer + s.TotalNoIdentifier
}

// SuccessRow is a customer whose lines were posted as an ERP order.
type SuccessRow struct {
	CustomerID  string  `json:"customer_id"`
	Name        string  `json:"customer_name"`
	VatID       string  `json:"vat"`
	CountryCode string  `json:"country"`
	Account     string  `json:"account"`
	OrderNumber string  `json:"order_number"`
	LineCount   int     `json:"line_count"`
	TotalAmount float64 `json:"total_amount"`
}

// FailedDebtorRow is a resolved customer that could not be posted to the ERP.
type FailedDebtorRow struct {
	CustomerID  string  `json:"customer_id"`
	Name        string  `json:"customer_name"`
	VatID       string  `json:"vat"`
	CountryCode string  `json:"country"`
	Reason      string  `json:"reason"`
	TotalAmount float64 `json:"total_amount"`
}

// FailedCustomerRow is a raw customer id that did not resolve to exactly one customer.
type FailedCustomerRow struct {
	CustomerID  string  `json:"customer_id"`
	Name        string  `json:"customer_name"`
	VatID       string  `json:"vat"`
	Reason      string  `json:"reason"`
	TotalAmount float64 `json:"total_amount"`
}

// NoIdentifierRow is a billing row that carried no usable customer id.
type NoIdentifierRow struct {
	Category     string  `json:"category"`
	PeriodStart  string  `json:"period_start"`
	PeriodEnd    string  `json:"period_end"`
	ItemName     string  `json:"item_name"`
	ItemNo       string  `json:"item_no"`
	Quantity     string  `json:"quantity"`
	UnitPrice    string  `json:"unit_price"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	CustomerName string  `json:"customer_name"`
	VatID        string  `json:"vat"`
	Note         string  `json:"note"`
}
