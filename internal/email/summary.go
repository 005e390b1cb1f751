// Package email renders run summary notifications shared by the senders.
package email

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"billrecon/internal/domain"
)

// Summary is a rendered run notification.
type Summary struct {
	Subject string
	Text    string
	HTML    string
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// RenderSummary builds the notification for a finished run.
func RenderSummary(run *domain.ReconciliationRun, snap *domain.LedgerSnapshot) Summary {
	mode := "live"
	if run.DryRun {
		mode = "dry run"
	}
	subject := fmt.Sprintf("Billing reconciliation %s (%s): %s", run.ID.String()[:8], mode, run.Status)

	rows := [][2]string{
		{"Processed", money(snap.TotalProcessed)},
		{"Posted to ERP", money(snap.TotalSuccess)},
		{"No debtor match", money(snap.TotalFailedDebtor)},
		{"No customer match", money(snap.TotalFailedCustomer)},
		{"No customer id", money(snap.TotalNoIdentifier)},
		{"Grand total", money(snap.GrandTotal())},
	}
	if money(snap.Adjustment) != money(0) {
		rows = append(rows, [2]string{"Line adjustment", money(snap.Adjustment)})
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Reconciliation run %s finished with status %s.\n\n", run.ID, run.Status)
	for _, r := range rows {
		fmt.Fprintf(&text, "%-18s %12s\n", r[0]+":", r[1])
	}
	fmt.Fprintf(&text, "\nCustomers posted: %d, debtor failures: %d, customer failures: %d, rows without id: %d\n",
		len(snap.SuccessRows), len(snap.FailedDebtorRows), len(snap.FailedCustomerRows), len(snap.NoIdentifierRows))
	if run.ReportLocation != "" {
		fmt.Fprintf(&text, "\nReports: %s\n", run.ReportLocation)
	}
	if run.Error != "" {
		fmt.Fprintf(&text, "\nError: %s\n", run.Error)
	}

	var body strings.Builder
	body.WriteString(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
`)
	fmt.Fprintf(&body, "  <h2 style=\"color: #333;\">Reconciliation run %s</h2>\n", html.EscapeString(string(run.Status)))
	body.WriteString("  <table style=\"border-collapse: collapse;\">\n")
	for _, r := range rows {
		fmt.Fprintf(&body, "    <tr><td style=\"padding: 4px 12px 4px 0;\">%s</td><td style=\"text-align: right;\">%s</td></tr>\n",
			html.EscapeString(r[0]), r[1])
	}
	body.WriteString("  </table>\n")
	if run.ReportLocation != "" {
		fmt.Fprintf(&body, "  <p>Reports: %s</p>\n", html.EscapeString(run.ReportLocation))
	}
	if run.Error != "" {
		fmt.Fprintf(&body, "  <p style=\"color: #b91c1c;\">Error: %s</p>\n", html.EscapeString(run.Error))
	}
	body.WriteString("</body>\n</html>")

	return Summary{Subject: subject, Text: text.String(), HTML: body.String()}
}
