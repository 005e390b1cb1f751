package domain

import "errors"

var (
	ErrNotFound            = errors.New("resource not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrRunInProgress       = errors.New("a reconciliation run is already in progress")
	ErrNoDebtorMatch       = errors.New("no matching debtor")
	ErrMissingIdentifier   = errors.New("customer has no vat identifier")
	ErrOrderSubmission     = errors.New("order submission failed")
	ErrInvalidWorkbook     = errors.New("billing workbook has no header row")
	ErrSourceNotConfigured = errors.New("input source is not configured")
	ErrInvalidRequest      = errors.New("invalid request")
)
