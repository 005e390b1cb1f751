package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"billrecon/internal/app"
	"billrecon/internal/config"
	"billrecon/internal/logger"
	"billrecon/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var (
		ref     = flag.String("ref", "", "YourRef of the orders to delete (default from config)")
		execute = flag.Bool("execute", false, "delete the orders; without it matching orders are only listed")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	zl, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Deps(ctx, cfg, nil, zl)
	if err != nil {
		return err
	}
	result, err := service.NewReconciliationService(deps, cfg, zl).PurgeOrders(ctx, *ref, !*execute)
	if err != nil {
		return err
	}

	for _, n := range result.OrderNumbers {
		fmt.Println(n)
	}
	zl.Info("purge finished",
		zap.String("your_ref", result.YourRef),
		zap.Bool("dry_run", result.DryRun),
		zap.Int("matched", result.Matched),
		zap.Int("deleted", result.Deleted),
	)
	return nil
}
