package csvexport

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"

	"billrecon/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// Report file names, one per ledger bucket plus the summary.
const (
	SuccessFile         = "success_invoices.csv"
	FailedCustomersFile = "failed_customers.csv"
	FailedDebtorsFile   = "failed_debtors.csv"
	NoIdentifierFile    = "no_customerid_lines.csv"
	SummaryFile         = "reconciliation_summary.json"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeJSON = "application/json"
)

var (
	successColumns = []string{
		"Customer ID", "Customer Name", "VAT", "Country", "Account", "Order Number", "Line Count", "Total Amount",
	}
	failedCustomerColumns = []string{
		"Customer ID", "Customer Name", "VAT", "Reason", "Total Amount",
	}
	failedDebtorColumns = []string{
		"Customer ID", "Customer Name", "VAT", "Country", "Reason", "Total Amount",
	}
	noIdentifierColumns = []string{
		"Category", "Period Start", "Period End", "Item Name", "Item No", "Quantity", "Unit Price",
		"Amount", "Currency", "Customer Name", "VAT", "Note",
	}
)

// Report is one rendered export file.
type Report struct {
	Name        string
	ContentType string
	Data        []byte
}

// Summary is the JSON reconciliation summary. Amounts are rounded to 2 decimals.
type Summary struct {
	TotalProcessed      float64            `json:"total_processed_amount"`
	TotalSuccess        float64            `json:"total_success_amount"`
	TotalFailedDebtor   float64            `json:"total_failed_debtors_amount"`
	TotalFailedCustomer float64            `json:"total_failed_customers_amount"`
	TotalNoIdentifier   float64            `json:"total_no_customerid_amount"`
	GrandTotal          float64            `json:"grand_total_amount"`
	Discrepancy         float64            `json:"discrepancy_amount"`
	Adjustment          float64            `json:"adjustment_amount"`
	Adjustments         map[string]float64 `json:"adjustments,omitempty"`
	Counts              map[string]int     `json:"counts"`
	Files               map[string]string  `json:"files"`
	Categories          []string           `json:"categories"`
}

// Round2 rounds an amount half away from zero to 2 decimals.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func formatMoney(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Render builds the four bucket CSVs and the summary JSON for a snapshot.
func Render(snap *domain.LedgerSnapshot) ([]Report, error) {
	success := make([][]string, 0, len(snap.SuccessRows))
	for _, r := range snap.SuccessRows {
		success = append(success, []string{
			r.CustomerID, r.Name, r.VatID, r.CountryCode, r.Account, r.OrderNumber,
			strconv.Itoa(r.LineCount), formatMoney(r.TotalAmount),
		})
	}
	failedCustomers := make([][]string, 0, len(snap.FailedCustomerRows))
	for _, r := range snap.FailedCustomerRows {
		failedCustomers = append(failedCustomers, []string{
			r.CustomerID, r.Name, r.VatID, r.Reason, formatMoney(r.TotalAmount),
		})
	}
	failedDebtors := make([][]string, 0, len(snap.FailedDebtorRows))
	for _, r := range snap.FailedDebtorRows {
		failedDebtors = append(failedDebtors, []string{
			r.CustomerID, r.Name, r.VatID, r.CountryCode, r.Reason, formatMoney(r.TotalAmount),
		})
	}
	noIdentifier := make([][]string, 0, len(snap.NoIdentifierRows))
	for _, r := range snap.NoIdentifierRows {
		noIdentifier = append(noIdentifier, []string{
			r.Category, r.PeriodStart, r.PeriodEnd, r.ItemName, r.ItemNo, r.Quantity, r.UnitPrice,
			formatMoney(r.Amount), r.Currency, r.CustomerName, r.VatID, r.Note,
		})
	}

	reports := make([]Report, 0, 5)
	for _, f := range []struct {
		name    string
		columns []string
		rows    [][]string
	}{
		{SuccessFile, successColumns, success},
		{FailedCustomersFile, failedCustomerColumns, failedCustomers},
		{FailedDebtorsFile, failedDebtorColumns, failedDebtors},
		{NoIdentifierFile, noIdentifierColumns, noIdentifier},
	} {
		data, err := encodeCSV(f.columns, f.rows)
		if err != nil {
			return nil, fmt.Errorf("csvexport.Render %s: %w", f.name, err)
		}
		reports = append(reports, Report{Name: f.name, ContentType: contentTypeCSV, Data: data})
	}

	summary, err := json.MarshalIndent(BuildSummary(snap), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("csvexport.Render %s: %w", SummaryFile, err)
	}
	reports = append(reports, Report{Name: SummaryFile, ContentType: contentTypeJSON, Data: summary})
	return reports, nil
}

// BuildSummary rounds the snapshot totals for export.
func BuildSummary(snap *domain.LedgerSnapshot) Summary {
	return Summary{
		TotalProcessed:      Round2(snap.TotalProcessed),
		TotalSuccess:        Round2(snap.TotalSuccess),
		TotalFailedDebtor:   Round2(snap.TotalFailedDebtor),
		TotalFailedCustomer: Round2(snap.TotalFailedCustomer),
		TotalNoIdentifier:   Round2(snap.TotalNoIdentifier),
		GrandTotal:          Round2(snap.GrandTotal()),
		Discrepancy:         Round2(snap.Discrepancy),
		Adjustment:          Round2(snap.Adjustment),
		Adjustments:         roundAll(snap.Adjustments),
		Counts: map[string]int{
			string(domain.BucketSuccess):        len(snap.SuccessRows),
			string(domain.BucketFailedDebtor):   len(snap.FailedDebtorRows),
			string(domain.BucketFailedCustomer): len(snap.FailedCustomerRows),
			string(domain.BucketNoIdentifier):   len(snap.NoIdentifierRows),
		},
		Files: map[string]string{
			string(domain.BucketSuccess):        SuccessFile,
			string(domain.BucketFailedDebtor):   FailedDebtorsFile,
			string(domain.BucketFailedCustomer): FailedCustomersFile,
			string(domain.BucketNoIdentifier):   NoIdentifierFile,
		},
		Categories: snap.Categories,
	}
}

func roundAll(m map[string]float64) map[string]float64 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = Round2(v)
	}
	return out
}

func encodeCSV(columns []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(BOM)
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteDir writes reports into dir, creating it when missing.
func WriteDir(dir string, reports []Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("csvexport.WriteDir: %w", err)
	}
	for _, r := range reports {
		if err := os.WriteFile(filepath.Join(dir, r.Name), r.Data, 0o644); err != nil {
			return fmt.Errorf("csvexport.WriteDir %s: %w", r.Name, err)
		}
	}
	return nil
}
