package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is a free-form row: one line of a billing workbook or one ERP object.
type Record map[string]any

// Has reports whether key is present with a non-nil value.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// String returns the value under key rendered as a string, or "" when absent.
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

// Float returns the value under key as a float64. Absent or malformed values yield 0.
func (r Record) Float(key string) float64 {
	f, _ := r.ParseFloat(key)
	return f
}

// ParseFloat is Float with an ok flag that is false when the value is absent or not numeric.
func (r Record) ParseFloat(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// First returns the first key from keys present in the record.
func (r Record) First(keys ...string) (string, bool) {
	for _, k := range keys {
		if r.Has(k) {
			return k, true
		}
	}
	return "", false
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}
