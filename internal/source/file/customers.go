package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"billrecon/internal/domain"
	"billrecon/internal/port"
)

// customerJSON is the vendor portal's customer shape.
type customerJSON struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	VatID              string `json:"vatId"`
	CountryCode        string `json:"countryCode"`
	ExternalCustomerID string `json:"externalCustomerId"`
}

type customerPage struct {
	Results []customerJSON `json:"results"`
}

type customerSource struct {
	path string
}

// NewCustomerSource reads the customer master list from a JSON file holding
// either a bare array or a paged {"results": [...]} document.
func NewCustomerSource(path string) port.CustomerSource {
	return &customerSource{path: path}
}

func (s *customerSource) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	if s.path == "" {
		return nil, fmt.Errorf("file.ListCustomers: %w", domain.ErrSourceNotConfigured)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("file.ListCustomers: %w", err)
	}
	customers, err := DecodeCustomers(data)
	if err != nil {
		return nil, fmt.Errorf("file.ListCustomers %s: %w", s.path, err)
	}
	return customers, nil
}

// DecodeCustomers parses a customer list document.
func DecodeCustomers(data []byte) ([]domain.Customer, error) {
	var raw []customerJSON
	if isArray(data) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	} else {
		var page customerPage
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, err
		}
		raw = page.Results
	}

	customers := make([]domain.Customer, 0, len(raw))
	for _, c := range raw {
		customers = append(customers, domain.Customer{
			ID:          strings.TrimSpace(c.ID),
			Name:        c.Name,
			VatID:       strings.TrimSpace(c.VatID),
			CountryCode: c.CountryCode,
			ExternalID:  c.ExternalCustomerID,
		})
	}
	return customers, nil
}

func isArray(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '['
}
