package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"billrecon/internal/app"
	"billrecon/internal/config"
	"billrecon/internal/domain"
	"billrecon/internal/logger"
	"billrecon/internal/port"
	"billrecon/internal/repository/postgres"
	"billrecon/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var (
		live        = flag.Bool("live", false, "post orders to the ERP instead of a dry run")
		mergePolicy = flag.String("merge-policy", "", "item_name or item_name_and_price (default from config)")
		invoiceDate = flag.String("invoice-date", "", "order invoice date, YYYY-MM-DD (default today)")
		reportDir   = flag.String("out", "", "report directory (default from config)")
		history     = flag.Bool("history", false, "record the run in the database")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *reportDir != "" {
		cfg.Recon.ReportDir = *reportDir
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runs port.RunRepository
	if *history {
		var db *sqlx.DB
		db, err = postgres.NewDB(ctx, &cfg.DB, zl)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		runs = postgres.NewRunRepo(db)
	}

	deps, err := app.Deps(ctx, cfg, runs, zl)
	if err != nil {
		return err
	}
	svc := service.NewReconciliationService(deps, cfg, zl)

	dryRun := !*live
	result, err := svc.Run(ctx, service.RunRequest{
		Trigger:     domain.RunTriggerCLI,
		DryRun:      &dryRun,
		MergePolicy: domain.MergePolicy(*mergePolicy),
		InvoiceDate: *invoiceDate,
	})
	if err != nil {
		return err
	}

	zl.Info("reconciliation complete",
		zap.String("run_id", result.ID.String()),
		zap.Bool("dry_run", result.DryRun),
		zap.Float64("total_processed", result.TotalProcessed),
		zap.Float64("total_success", result.TotalSuccess),
		zap.Float64("total_failed_debtor", result.TotalFailedDebtor),
		zap.Float64("total_failed_customer", result.TotalFailedCustomer),
		zap.Float64("total_no_identifier", result.TotalNoIdentifier),
		zap.String("reports", result.ReportLocation),
	)
	return nil
}
