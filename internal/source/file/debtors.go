package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"billrecon/internal/domain"
	"billrecon/internal/port"
)

type debtorSource struct {
	path string
}

// NewDebtorSource reads an exported debtor dump: a JSON array of free-form objects.
func NewDebtorSource(path string) port.DebtorSource {
	return &debtorSource{path: path}
}

func (s *debtorSource) LoadDebtors(ctx context.Context) ([]domain.Record, error) {
	if s.path == "" {
		return nil, fmt.Errorf("file.LoadDebtors: %w", domain.ErrSourceNotConfigured)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("file.LoadDebtors: %w", err)
	}
	var records []domain.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("file.LoadDebtors %s: %w", s.path, err)
	}
	return records, nil
}
