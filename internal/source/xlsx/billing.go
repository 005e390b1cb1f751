package xlsx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"billrecon/internal/domain"
	"billrecon/internal/port"
)

const extension = ".xlsx"

type billingSource struct {
	dir string
}

// periodLayouts name billing period subdirectories, e.g. "2024-02" or "2024-02-29".
var periodLayouts = []string{"2006-01-02", "2006-01"}

// NewBillingSource reads one workbook per billing category from dir. The file
// name without extension is the category name, e.g. "Microsoft CSP (NCE).xlsx".
// When dir holds period subdirectories only the latest period is read.
func NewBillingSource(dir string) port.BillingSource {
	return &billingSource{dir: dir}
}

func (s *billingSource) LoadBilling(ctx context.Context) ([]domain.BillingCategory, error) {
	if s.dir == "" {
		return nil, fmt.Errorf("xlsx.LoadBilling: %w", domain.ErrSourceNotConfigured)
	}
	dir := s.dir
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("xlsx.LoadBilling: %w", err)
	}
	if period, ok := latestPeriod(entries); ok {
		dir = filepath.Join(dir, period)
		if entries, err = os.ReadDir(dir); err != nil {
			return nil, fmt.Errorf("xlsx.LoadBilling: %w", err)
		}
	}

	var categories []domain.BillingCategory
	for _, e := range entries {
		name := e.Name()
		// "~$" prefixed files are Excel lock files.
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), extension) || strings.HasPrefix(name, "~$") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := ReadWorkbook(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("xlsx.LoadBilling %s: %w", name, err)
		}
		categories = append(categories, domain.BillingCategory{
			Name: strings.TrimSuffix(name, filepath.Ext(name)),
			Rows: rows,
		})
	}
	return categories, nil
}

// latestPeriod returns the subdirectory whose name is the latest period end.
// A month-only name ends on the last day of that month; on equal ends the
// greater name wins.
func latestPeriod(entries []os.DirEntry) (string, bool) {
	var (
		best    string
		bestEnd time.Time
	)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		end, ok := periodEnd(e.Name())
		if !ok {
			continue
		}
		if best == "" || end.After(bestEnd) || (end.Equal(bestEnd) && e.Name() > best) {
			best, bestEnd = e.Name(), end
		}
	}
	return best, best != ""
}

func periodEnd(name string) (time.Time, bool) {
	for _, layout := range periodLayouts {
		t, err := time.Parse(layout, name)
		if err != nil {
			continue
		}
		if layout == "2006-01" {
			t = t.AddDate(0, 1, -1)
		}
		return t, true
	}
	return time.Time{}, false
}

// ReadWorkbook maps every data row of the first sheet onto the header row.
// Cells are kept as their raw text; blank cells become nil so the column is
// still present on the record.
func ReadWorkbook(path string) ([]domain.Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(0), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrInvalidWorkbook
	}

	header := make([]string, len(rows[0]))
	hasHeader := false
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
		if header[i] != "" {
			hasHeader = true
		}
	}
	if !hasHeader {
		return nil, domain.ErrInvalidWorkbook
	}

	records := make([]domain.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rec := make(domain.Record, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(row) && strings.TrimSpace(row[i]) != "" {
				rec[col] = strings.TrimSpace(row[i])
			} else {
				rec[col] = nil
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
