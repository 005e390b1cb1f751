package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"billrecon/internal/domain"
	"billrecon/internal/port"
)

const runColumns = `id, status, trigger, dry_run, total_processed, total_success,
	total_failed_debtor, total_failed_customer, total_no_identifier, snapshot,
	report_location, error, started_at, finished_at`

// runRow mirrors reconciliation_runs; jsonb is scanned through []byte.
type runRow struct {
	ID                  uuid.UUID  `db:"id"`
	Status              string     `db:"status"`
	Trigger             string     `db:"trigger"`
	DryRun              bool       `db:"dry_run"`
	TotalProcessed      float64    `db:"total_processed"`
	TotalSuccess        float64    `db:"total_success"`
	TotalFailedDebtor   float64    `db:"total_failed_debtor"`
	TotalFailedCustomer float64    `db:"total_failed_customer"`
	TotalNoIdentifier   float64    `db:"total_no_identifier"`
	Snapshot            []byte     `db:"snapshot"`
	ReportLocation      string     `db:"report_location"`
	Error               string     `db:"error"`
	StartedAt           time.Time  `db:"started_at"`
	FinishedAt          *time.Time `db:"finished_at"`
}

func (r *runRow) toDomain() domain.ReconciliationRun {
	return domain.ReconciliationRun{
		ID:                  r.ID,
		Status:              domain.RunStatus(r.Status),
		Trigger:             domain.RunTrigger(r.Trigger),
		DryRun:              r.DryRun,
		TotalProcessed:      r.TotalProcessed,
		TotalSuccess:        r.TotalSuccess,
		TotalFailedDebtor:   r.TotalFailedDebtor,
		TotalFailedCustomer: r.TotalFailedCustomer,
		TotalNoIdentifier:   r.TotalNoIdentifier,
		Snapshot:            json.RawMessage(r.Snapshot),
		ReportLocation:      r.ReportLocation,
		Error:               r.Error,
		StartedAt:           r.StartedAt,
		FinishedAt:          r.FinishedAt,
	}
}

type runRepo struct {
	db *sqlx.DB
}

// NewRunRepo creates a new PostgreSQL-backed RunRepository.
func NewRunRepo(db *sqlx.DB) port.RunRepository {
	return &runRepo{db: db}
}

func (r *runRepo) Create(ctx context.Context, run *domain.ReconciliationRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	query := `INSERT INTO reconciliation_runs (id, status, trigger, dry_run, started_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query, run.ID, run.Status, run.Trigger, run.DryRun, run.StartedAt)
	if err != nil {
		return fmt.Errorf("runRepo.Create: %w", err)
	}
	return nil
}

func (r *runRepo) Finish(ctx context.Context, run *domain.ReconciliationRun) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}

	var snapshot []byte
	if len(run.Snapshot) > 0 {
		snapshot = run.Snapshot
	}

	query := `UPDATE reconciliation_runs SET status = $1, total_processed = $2, total_success = $3,
		total_failed_debtor = $4, total_failed_customer = $5, total_no_identifier = $6,
		snapshot = $7, report_location = $8, error = $9, finished_at = $10
		WHERE id = $11`

	result, err := r.db.ExecContext(ctx, query,
		run.Status, run.TotalProcessed, run.TotalSuccess,
		run.TotalFailedDebtor, run.TotalFailedCustomer, run.TotalNoIdentifier,
		snapshot, run.ReportLocation, run.Error, run.FinishedAt, run.ID)
	if err != nil {
		return fmt.Errorf("runRepo.Finish: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *runRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReconciliationRun, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row,
		"SELECT "+runColumns+" FROM reconciliation_runs WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("runRepo.GetByID: %w", err)
	}
	run := row.toDomain()
	return &run, nil
}

// List returns runs newest first without their snapshots.
func (r *runRepo) List(ctx context.Context, offset, limit int) ([]domain.ReconciliationRun, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM reconciliation_runs")
	if err != nil {
		return nil, 0, fmt.Errorf("runRepo.List count: %w", err)
	}

	var rows []runRow
	err = r.db.SelectContext(ctx, &rows,
		`SELECT id, status, trigger, dry_run, total_processed, total_success,
			total_failed_debtor, total_failed_customer, total_no_identifier, NULL::bytea AS snapshot,
			report_location, error, started_at, finished_at
		FROM reconciliation_runs ORDER BY started_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("runRepo.List: %w", err)
	}

	runs := make([]domain.ReconciliationRun, 0, len(rows))
	for i := range rows {
		runs = append(runs, rows[i].toDomain())
	}
	return runs, total, nil
}
