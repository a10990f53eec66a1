package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/smartattend/smartattend-api/internal/models"
)

const reportColumns = `id, tenant_id, type, params, status, file_path, result_url, error_message, requested_by, started_at, finished_at, created_at`

// ReportRepository provides database access for report export jobs.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new instance of ReportRepository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// FindByID returns a report job scoped to a tenant.
func (r *ReportRepository) FindByID(ctx context.Context, tenantID, id string) (*models.ReportJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM report_jobs WHERE id = $1 AND tenant_id = $2 LIMIT 1`, reportColumns)
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, query, id, tenantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find report job by id: %w", err)
	}
	return &job, nil
}

// ListByTenant returns a tenant's report jobs, newest first.
func (r *ReportRepository) ListByTenant(ctx context.Context, tenantID string, limit int) ([]models.ReportJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM report_jobs WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT %d`, reportColumns, limit)
	var jobs []models.ReportJob
	if err := r.db.SelectContext(ctx, &jobs, query, tenantID); err != nil {
		return nil, fmt.Errorf("list report jobs: %w", err)
	}
	return jobs, nil
}

// Create inserts a queued report job.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}

	const query = `INSERT INTO report_jobs (id, tenant_id, type, params, status, requested_by, created_at)
		VALUES (:id, :tenant_id, :type, :params, :status, :requested_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// MarkRunning stamps the job as started.
func (r *ReportRepository) MarkRunning(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE report_jobs SET status = $2, started_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportStatusRunning, at); err != nil {
		return fmt.Errorf("mark report running: %w", err)
	}
	return nil
}

// MarkCompleted records the produced file and its signed download URL.
func (r *ReportRepository) MarkCompleted(ctx context.Context, id, filePath, resultURL string, at time.Time) error {
	const query = `UPDATE report_jobs SET status = $2, file_path = $3, result_url = $4, finished_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportStatusCompleted, filePath, resultURL, at); err != nil {
		return fmt.Errorf("mark report completed: %w", err)
	}
	return nil
}

// MarkFailed records a terminal failure.
func (r *ReportRepository) MarkFailed(ctx context.Context, id, message string, at time.Time) error {
	const query = `UPDATE report_jobs SET status = $2, error_message = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportStatusFailed, message, at); err != nil {
		return fmt.Errorf("mark report failed: %w", err)
	}
	return nil
}

// DeleteOlderThan removes finished jobs past the retention window and
// returns their stored file paths for cleanup.
func (r *ReportRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	const query = `DELETE FROM report_jobs WHERE finished_at IS NOT NULL AND finished_at < $1 RETURNING file_path`
	rows, err := r.db.QueryxContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("delete old report jobs: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path sql.NullString
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan report path: %w", err)
		}
		if path.Valid {
			paths = append(paths, path.String)
		}
	}
	return paths, rows.Err()
}
