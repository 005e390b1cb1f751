package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"billrecon/internal/config"
	"billrecon/internal/csvexport"
	"billrecon/internal/domain"
	"billrecon/internal/erp/dryrun"
	"billrecon/internal/port"
	"billrecon/internal/recon"
	s3store "billrecon/internal/storage/s3"
)

// RunRequest starts a reconciliation run. Nil or empty fields fall back to configuration.
type RunRequest struct {
	Trigger     domain.RunTrigger  `json:"-"`
	DryRun      *bool              `json:"dry_run"`
	MergePolicy domain.MergePolicy `json:"merge_policy"`
	InvoiceDate string             `json:"invoice_date"`
}

// PurgeResult reports the outcome of an order purge.
type PurgeResult struct {
	YourRef      string   `json:"your_ref"`
	DryRun       bool     `json:"dry_run"`
	Matched      int      `json:"matched"`
	Deleted      int      `json:"deleted"`
	OrderNumbers []string `json:"order_numbers"`
}

// ReconciliationService runs reconciliations and exposes their history.
type ReconciliationService interface {
	Run(ctx context.Context, req RunRequest) (*domain.ReconciliationRun, error)
	GetRun(ctx context.Context, id uuid.UUID) (*domain.ReconciliationRun, error)
	ListRuns(ctx context.Context, offset, limit int) ([]domain.ReconciliationRun, int, error)
	ReportURL(ctx context.Context, id uuid.UUID, file string) (string, error)
	PurgeOrders(ctx context.Context, yourRef string, dryRun bool) (*PurgeResult, error)
}

// ReconciliationDeps are the collaborators of the reconciliation service.
// Runs, Storage, Email and Purger are optional.
type ReconciliationDeps struct {
	Customers port.CustomerSource
	Debtors   port.DebtorSource
	Billing   port.BillingSource
	Orders    port.OrderGateway
	Purger    port.OrderPurger
	Runs      port.RunRepository
	Storage   port.ObjectStorage
	Email     port.EmailSender
}

type reconciliationService struct {
	deps     ReconciliationDeps
	reconCfg config.ReconConfig
	s3Cfg    config.S3Config
	emailCfg config.EmailConfig
	logger   *zap.Logger
	mu       sync.Mutex
	running  bool
	now      func() time.Time
}

// NewReconciliationService creates a ReconciliationService.
func NewReconciliationService(deps ReconciliationDeps, cfg *config.Config, logger *zap.Logger) ReconciliationService {
	return &reconciliationService{
		deps:     deps,
		reconCfg: cfg.Recon,
		s3Cfg:    cfg.S3,
		emailCfg: cfg.Email,
		logger:   logger.With(zap.String("component", "reconciliation_service")),
		now:      time.Now,
	}
}

func (s *reconciliationService) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *reconciliationService) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *reconciliationService) Run(ctx context.Context, req RunRequest) (*domain.ReconciliationRun, error) {
	if !s.acquire() {
		return nil, domain.ErrRunInProgress
	}
	defer s.release()

	opts, err := s.options(req)
	if err != nil {
		return nil, err
	}
	trigger := req.Trigger
	if trigger == "" {
		trigger = domain.RunTriggerAPI
	}

	run := &domain.ReconciliationRun{
		ID:        uuid.New(),
		Status:    domain.RunStatusRunning,
		Trigger:   trigger,
		DryRun:    opts.Simulate,
		StartedAt: s.now().UTC(),
	}
	if s.deps.Runs != nil {
		if err := s.deps.Runs.Create(ctx, run); err != nil {
			return nil, fmt.Errorf("reconciliation.Run: %w", err)
		}
	}
	log := s.logger.With(zap.String("run_id", run.ID.String()), zap.Bool("dry_run", run.DryRun))
	log.Info("reconciliation run started", zap.String("trigger", string(trigger)))

	snap, err := s.execute(ctx, run, opts, log)
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.Error = err.Error()
		log.Error("reconciliation run failed", zap.Error(err))
	} else {
		run.Status = domain.RunStatusCompleted
	}
	finished := s.now().UTC()
	run.FinishedAt = &finished

	if s.deps.Runs != nil {
		// the caller's context may already be cancelled; the history row is still written
		if ferr := s.deps.Runs.Finish(context.WithoutCancel(ctx), run); ferr != nil {
			log.Error("persisting run result", zap.Error(ferr))
			if err == nil {
				err = ferr
			}
		}
	}
	if err != nil {
		return run, fmt.Errorf("reconciliation.Run: %w", err)
	}

	s.notify(ctx, run, snap, log)
	return run, nil
}

func (s *reconciliationService) options(req RunRequest) (recon.Options, error) {
	policy := s.reconCfg.MergePolicy
	if req.MergePolicy != "" {
		p, ok := domain.ValidMergePolicies[string(req.MergePolicy)]
		if !ok {
			return recon.Options{}, fmt.Errorf("%w: unknown merge policy %q", domain.ErrInvalidRequest, req.MergePolicy)
		}
		policy = p
	}
	if req.InvoiceDate != "" {
		if _, err := time.Parse("2006-01-02", req.InvoiceDate); err != nil {
			return recon.Options{}, fmt.Errorf("%w: invoice_date must be YYYY-MM-DD", domain.ErrInvalidRequest)
		}
	}
	dryRun := s.reconCfg.DryRun
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}
	return recon.Options{
		MergePolicy:      policy,
		Workers:          s.reconCfg.Workers,
		ExpectedCurrency: s.reconCfg.ExpectedCurrency,
		OrderItem:        s.reconCfg.OrderItem,
		OrderRef:         s.reconCfg.OrderRef,
		InvoiceDate:      req.InvoiceDate,
		Simulate:         dryRun,
	}, nil
}

func (s *reconciliationService) execute(ctx context.Context, run *domain.ReconciliationRun, opts recon.Options, log *zap.Logger) (*domain.LedgerSnapshot, error) {
	customers, err := s.deps.Customers.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading customers: %w", err)
	}
	categories, err := s.deps.Billing.LoadBilling(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading billing: %w", err)
	}
	log.Info("inputs loaded", zap.Int("customers", len(customers)), zap.Int("categories", len(categories)))

	orders := s.deps.Orders
	if opts.Simulate {
		orders = dryrun.NewGateway(s.deps.Orders, log)
	}
	if orders == nil {
		return nil, fmt.Errorf("order gateway: %w", domain.ErrSourceNotConfigured)
	}

	snap, err := recon.NewEngine(opts, s.deps.Debtors, orders, log).Run(ctx, customers, categories)
	if err != nil {
		return nil, err
	}

	run.TotalProcessed = csvexport.Round2(snap.TotalProcessed)
	run.TotalSuccess = csvexport.Round2(snap.TotalSuccess)
	run.TotalFailedDebtor = csvexport.Round2(snap.TotalFailedDebtor)
	run.TotalFailedCustomer = csvexport.Round2(snap.TotalFailedCustomer)
	run.TotalNoIdentifier = csvexport.Round2(snap.TotalNoIdentifier)
	if run.Snapshot, err = json.Marshal(snap); err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}

	reports, err := csvexport.Render(snap)
	if err != nil {
		return nil, err
	}
	if run.ReportLocation, err = s.storeReports(ctx, run.ID, reports); err != nil {
		return nil, fmt.Errorf("storing reports: %w", err)
	}
	log.Info("reports stored", zap.String("location", run.ReportLocation), zap.Int("files", len(reports)))
	return snap, nil
}

func (s *reconciliationService) storeReports(ctx context.Context, runID uuid.UUID, reports []csvexport.Report) (string, error) {
	if s.deps.Storage != nil && s.s3Cfg.Bucket != "" {
		for _, r := range reports {
			_, err := s.deps.Storage.Upload(ctx, port.UploadInput{
				Bucket:      s.s3Cfg.Bucket,
				Key:         s3store.ReportKey(runID, r.Name),
				Body:        bytes.NewReader(r.Data),
				ContentType: r.ContentType,
			})
			if err != nil {
				return "", fmt.Errorf("uploading %s: %w", r.Name, err)
			}
		}
		return fmt.Sprintf("s3://%s/%s/", s.s3Cfg.Bucket, s3store.ReportKey(runID, "")), nil
	}

	dir := filepath.Join(s.reconCfg.ReportDir, runID.String())
	if err := csvexport.WriteDir(dir, reports); err != nil {
		return "", err
	}
	return dir, nil
}

func (s *reconciliationService) notify(ctx context.Context, run *domain.ReconciliationRun, snap *domain.LedgerSnapshot, log *zap.Logger) {
	if s.deps.Email == nil || len(s.emailCfg.Recipients) == 0 {
		return
	}
	if err := s.deps.Email.SendRunSummary(ctx, s.emailCfg.Recipients, run, snap); err != nil {
		log.Warn("sending run summary", zap.Error(err))
	}
}

func (s *reconciliationService) GetRun(ctx context.Context, id uuid.UUID) (*domain.ReconciliationRun, error) {
	if s.deps.Runs == nil {
		return nil, domain.ErrNotFound
	}
	run, err := s.deps.Runs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reconciliation.GetRun: %w", err)
	}
	return run, nil
}

func (s *reconciliationService) ListRuns(ctx context.Context, offset, limit int) ([]domain.ReconciliationRun, int, error) {
	if s.deps.Runs == nil {
		return []domain.ReconciliationRun{}, 0, nil
	}
	runs, total, err := s.deps.Runs.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("reconciliation.ListRuns: %w", err)
	}
	return runs, total, nil
}

// ReportURL returns a presigned download URL for one report file of a run.
func (s *reconciliationService) ReportURL(ctx context.Context, id uuid.UUID, file string) (string, error) {
	if !slices.Contains(reportFiles, file) {
		return "", fmt.Errorf("%w: unknown report %q", domain.ErrInvalidRequest, file)
	}
	if s.deps.Storage == nil || s.s3Cfg.Bucket == "" {
		return "", fmt.Errorf("reconciliation.ReportURL: %w", domain.ErrSourceNotConfigured)
	}
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return "", err
	}
	if run.Status != domain.RunStatusCompleted {
		return "", fmt.Errorf("reconciliation.ReportURL %s: %w", id, domain.ErrNotFound)
	}
	url, err := s.deps.Storage.GetPresignedURL(ctx, s.s3Cfg.Bucket, s3store.ReportKey(id, file), s.s3Cfg.PresignExpiry)
	if err != nil {
		return "", fmt.Errorf("reconciliation.ReportURL: %w", err)
	}
	return url, nil
}

var reportFiles = []string{
	csvexport.SuccessFile,
	csvexport.FailedCustomersFile,
	csvexport.FailedDebtorsFile,
	csvexport.NoIdentifierFile,
	csvexport.SummaryFile,
}

// PurgeOrders removes ERP orders created by earlier runs, identified by their
// YourRef. With dryRun set the matching orders are only listed.
func (s *reconciliationService) PurgeOrders(ctx context.Context, yourRef string, dryRun bool) (*PurgeResult, error) {
	if s.deps.Purger == nil {
		return nil, fmt.Errorf("reconciliation.PurgeOrders: %w", domain.ErrSourceNotConfigured)
	}
	if yourRef == "" {
		yourRef = s.reconCfg.OrderRef
	}
	if yourRef == "" {
		return nil, fmt.Errorf("%w: your_ref is required", domain.ErrInvalidRequest)
	}

	orders, err := s.deps.Purger.ListOrdersByRef(ctx, yourRef)
	if err != nil {
		return nil, fmt.Errorf("reconciliation.PurgeOrders: %w", err)
	}
	result := &PurgeResult{YourRef: yourRef, DryRun: dryRun, Matched: len(orders), OrderNumbers: make([]string, 0, len(orders))}
	for _, o := range orders {
		result.OrderNumbers = append(result.OrderNumbers, o.String("OrderNumber"))
	}
	log := s.logger.With(zap.String("your_ref", yourRef), zap.Int("matched", len(orders)), zap.Bool("dry_run", dryRun))
	if dryRun || len(orders) == 0 {
		log.Info("order purge listed")
		return result, nil
	}

	if err := s.deps.Purger.DeleteOrders(ctx, orders); err != nil {
		return nil, fmt.Errorf("reconciliation.PurgeOrders: %w", err)
	}
	result.Deleted = len(orders)
	log.Info("order purge deleted orders")
	return result, nil
}
