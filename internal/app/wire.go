// Package app assembles the reconciliation service from configuration for
// the server and the command line tools.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"billrecon/internal/config"
	"billrecon/internal/email/noop"
	"billrecon/internal/email/ses"
	"billrecon/internal/erp/uniconta"
	"billrecon/internal/port"
	"billrecon/internal/service"
	"billrecon/internal/source/file"
	"billrecon/internal/source/xlsx"
	s3storage "billrecon/internal/storage/s3"
)

// Deps builds the service collaborators. runs may be nil to disable run history.
func Deps(ctx context.Context, cfg *config.Config, runs port.RunRepository, logger *zap.Logger) (service.ReconciliationDeps, error) {
	deps := service.ReconciliationDeps{
		Customers: file.NewCustomerSource(cfg.Sources.CustomersPath),
		Billing:   xlsx.NewBillingSource(cfg.Sources.BillingDir),
		Runs:      runs,
	}

	// Without an API token the ERP is unreachable: debtors must come from a
	// dump and runs can only be dry runs.
	if cfg.ERP.APIToken != "" {
		client := uniconta.NewClient(&cfg.ERP, logger)
		deps.Debtors = client
		deps.Orders = client
		deps.Purger = client
	}
	if cfg.Sources.DebtorsPath != "" || deps.Debtors == nil {
		deps.Debtors = file.NewDebtorSource(cfg.Sources.DebtorsPath)
	}

	if cfg.S3.Bucket != "" {
		store, err := s3storage.NewReportStore(ctx, &cfg.S3)
		if err != nil {
			return deps, fmt.Errorf("initializing report storage: %w", err)
		}
		deps.Storage = store
	}

	email, err := NewEmailSender(ctx, &cfg.Email, logger)
	if err != nil {
		return deps, err
	}
	deps.Email = email
	return deps, nil
}

// NewEmailSender picks the configured email provider.
func NewEmailSender(ctx context.Context, cfg *config.EmailConfig, logger *zap.Logger) (port.EmailSender, error) {
	switch cfg.Provider {
	case "ses":
		sender, err := ses.NewSESSender(ctx, cfg.Region, cfg.FromAddress, cfg.FromName)
		if err != nil {
			return nil, fmt.Errorf("initializing SES sender: %w", err)
		}
		return sender, nil
	case "", "noop":
		return noop.NewNoopSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
