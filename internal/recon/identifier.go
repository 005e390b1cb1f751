package recon

import (
	"strings"

	"billrecon/internal/domain"
)

// paddedWidth is the width national registration numbers are zero-padded to (Danish CVR).
const paddedWidth = 8

var identifierStripper = strings.NewReplacer(" ", "", ".", "", "-", "")

// Normalize canonicalizes a VAT/registration/account identifier for matching:
// surrounding whitespace, inner spaces, dots and dashes are dropped and the
// result is uppercased. Blank input yields "".
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	return strings.ToUpper(identifierStripper.Replace(s))
}

// NormalizeCustomerID turns a raw vendor customer id into its cache key.
// Vendors export GUIDs with or without braces and in either case.
func NormalizeCustomerID(raw string) string {
	s := strings.NewReplacer("{", "", "}", "").Replace(raw)
	return strings.ToLower(strings.TrimSpace(s))
}

// Candidates returns every encoding of the customer's identifier the
// accounting system might have stored, in a stable order without duplicates.
func Candidates(c *domain.Customer) []string {
	if !c.HasIdentifier() {
		return nil
	}
	raw := strings.TrimSpace(c.VatID)
	if raw == "" {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	cleaned := identifierStripper.Replace(raw)
	cc := strings.TrimSpace(c.CountryCode)

	add(raw)
	add(cleaned)
	if cc != "" {
		add(cc + cleaned)
		add(strings.ToUpper(cc) + cleaned)
	}

	if isDigits(cleaned) && len(cleaned) < 10 {
		padded := zeroPad(cleaned, paddedWidth)
		add(padded)
		if cc != "" {
			add(cc + padded)
			add(strings.ToUpper(cc) + padded)
		}
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func zeroPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
