package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/smartattend/smartattend-api/internal/models"
	appErrors "github.com/smartattend/smartattend-api/pkg/errors"
	"github.com/smartattend/smartattend-api/pkg/export"
	"github.com/smartattend/smartattend-api/pkg/jobs"
	"github.com/smartattend/smartattend-api/pkg/storage"
)

type reportRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.ReportJob, error)
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]models.ReportJob, error)
	Create(ctx context.Context, job *models.ReportJob) error
	MarkRunning(ctx context.Context, id string, at time.Time) error
	MarkCompleted(ctx context.Context, id, filePath, resultURL string, at time.Time) error
	MarkFailed(ctx context.Context, id, message string, at time.Time) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
}

type reportAttendanceRepository interface {
	DepartmentReport(ctx context.Context, tenantID, departmentID string, from, to time.Time) ([]models.DepartmentReportRow, error)
	History(ctx context.Context, memberID string, from, to *time.Time, limit int) ([]models.AttendanceHistoryRow, error)
	Summary(ctx context.Context, memberID string, from, to *time.Time) (*models.AttendanceSummary, error)
}

// CreateReportRequest queues an attendance export.
type CreateReportRequest struct {
	Type         models.ReportType   `json:"type" validate:"required,oneof=department_attendance member_attendance"`
	Format       models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
	DepartmentID string              `json:"department_id,omitempty"`
	MemberID     string              `json:"member_id,omitempty"`
	DateFrom     string              `json:"date_from" validate:"required,datetime=2006-01-02"`
	DateTo       string              `json:"date_to" validate:"required,datetime=2006-01-02"`
}

type reportPayload struct {
	TenantID string
	JobID    string
}

// ReportService runs attendance exports as background jobs. Finished files
// are served through expiring signed URLs.
type ReportService struct {
	repo       reportRepository
	attendance reportAttendanceRepository
	queue      *jobs.Queue
	store      *storage.LocalStorage
	signer     *storage.SignedURLSigner
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewReportService constructs a ReportService. Call Queue to obtain the
// handler-bound queue and start it with the server context.
func NewReportService(repo reportRepository, attendance reportAttendanceRepository, store *storage.LocalStorage, signer *storage.SignedURLSigner, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, queueCfg jobs.QueueConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	s := &ReportService{
		repo:       repo,
		attendance: attendance,
		store:      store,
		signer:     signer,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
	if queueCfg.Logger == nil {
		queueCfg.Logger = logger
	}
	s.queue = jobs.NewQueue("reports", s.process, queueCfg)
	return s
}

// Queue exposes the underlying job queue for lifecycle management.
func (s *ReportService) Queue() *jobs.Queue {
	return s.queue
}

// Request validates and enqueues an export job.
func (s *ReportService) Request(ctx context.Context, tenantID, requesterID string, req CreateReportRequest) (*models.ReportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}

	switch req.Type {
	case models.ReportTypeDepartmentAttendance:
		if req.DepartmentID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "department_id is required for department reports")
		}
	case models.ReportTypeMemberAttendance:
		if req.MemberID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "member_id is required for member reports")
		}
	}
	if req.DateTo < req.DateFrom {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date_to must not precede date_from")
	}

	job := &models.ReportJob{
		TenantID: tenantID,
		Type:     req.Type,
		Params: models.ReportJobParams{
			DepartmentID: req.DepartmentID,
			MemberID:     req.MemberID,
			DateFrom:     req.DateFrom,
			DateTo:       req.DateTo,
			Format:       req.Format,
		},
		Status:      models.ReportStatusQueued,
		RequestedBy: requesterID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}

	if err := s.queue.Enqueue(jobs.Job{
		ID:      job.ID,
		Type:    string(job.Type),
		Payload: reportPayload{TenantID: tenantID, JobID: job.ID},
	}); err != nil {
		now := time.Now().UTC()
		if markErr := s.repo.MarkFailed(ctx, job.ID, "queue unavailable", now); markErr != nil {
			s.logger.Warn("failed to mark report failed", zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}

	return job, nil
}

// Get returns a report job within the tenant.
func (s *ReportService) Get(ctx context.Context, tenantID, id string) (*models.ReportJob, error) {
	job, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return job, nil
}

// List returns the tenant's report jobs, newest first.
func (s *ReportService) List(ctx context.Context, tenantID string, limit int) ([]models.ReportJob, error) {
	reports, err := s.repo.ListByTenant(ctx, tenantID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}
	return reports, nil
}

// Download resolves a signed token to the produced file.
func (s *ReportService) Download(ctx context.Context, token string) (*os.File, string, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		s.logger.Warn("report file missing", zap.String("job_id", jobID), zap.Error(err))
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report file no longer available")
	}
	return file, relPath, nil
}

// Cleanup removes finished jobs and their files past the retention window.
func (s *ReportService) Cleanup(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().UTC().Add(-retention)
	paths, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := s.store.Delete(path); err != nil {
			s.logger.Warn("failed to delete report file", zap.String("path", path), zap.Error(err))
		}
	}
	if _, err := s.store.CleanupOlderThan(retention); err != nil {
		s.logger.Warn("report directory cleanup failed", zap.Error(err))
	}
	return nil
}

func (s *ReportService) process(ctx context.Context, queued jobs.Job) error {
	payload, ok := queued.Payload.(reportPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", queued.Payload)
	}

	started := time.Now().UTC()
	job, err := s.repo.FindByID(ctx, payload.TenantID, payload.JobID)
	if err != nil {
		return fmt.Errorf("load report job: %w", err)
	}

	if err := s.repo.MarkRunning(ctx, job.ID, started); err != nil {
		return fmt.Errorf("mark report running: %w", err)
	}

	data, renderErr := s.render(ctx, job)
	if renderErr != nil {
		now := time.Now().UTC()
		if err := s.repo.MarkFailed(ctx, job.ID, renderErr.Error(), now); err != nil {
			s.logger.Error("failed to mark report failed", zap.Error(err))
		}
		s.metrics.ObserveReportJob(string(job.Type), false, now.Sub(started))
		s.logger.Error("report job failed", zap.String("job_id", job.ID), zap.Error(renderErr))
		return nil
	}

	filename := fmt.Sprintf("%s_%s.%s", job.Type, job.ID, job.Params.Format)
	relPath, err := s.store.Save(filename, data)
	if err != nil {
		now := time.Now().UTC()
		if markErr := s.repo.MarkFailed(ctx, job.ID, "failed to store file", now); markErr != nil {
			s.logger.Error("failed to mark report failed", zap.Error(markErr))
		}
		s.metrics.ObserveReportJob(string(job.Type), false, now.Sub(started))
		return fmt.Errorf("store report file: %w", err)
	}

	url, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return fmt.Errorf("sign report url: %w", err)
	}

	finished := time.Now().UTC()
	if err := s.repo.MarkCompleted(ctx, job.ID, relPath, url, finished); err != nil {
		return fmt.Errorf("mark report completed: %w", err)
	}
	s.metrics.ObserveReportJob(string(job.Type), true, finished.Sub(started))
	s.logger.Info("report job completed", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Duration("took", finished.Sub(started)))
	return nil
}

func (s *ReportService) render(ctx context.Context, job *models.ReportJob) ([]byte, error) {
	from, err := time.Parse("2006-01-02", job.Params.DateFrom)
	if err != nil {
		return nil, fmt.Errorf("invalid date_from: %w", err)
	}
	to, err := time.Parse("2006-01-02", job.Params.DateTo)
	if err != nil {
		return nil, fmt.Errorf("invalid date_to: %w", err)
	}

	var dataset export.Dataset
	var title, subtitle string

	switch job.Type {
	case models.ReportTypeDepartmentAttendance:
		queryStart := time.Now()
		rows, err := s.attendance.DepartmentReport(ctx, job.TenantID, job.Params.DepartmentID, from, to)
		s.metrics.ObserveDBQuery("department_report", time.Since(queryStart))
		if err != nil {
			return nil, fmt.Errorf("load department report: %w", err)
		}
		dataset = departmentDataset(rows)
		title = "Department Attendance"
		subtitle = fmt.Sprintf("%s to %s", job.Params.DateFrom, job.Params.DateTo)

	case models.ReportTypeMemberAttendance:
		queryStart := time.Now()
		rows, err := s.attendance.History(ctx, job.Params.MemberID, &from, &to, 500)
		s.metrics.ObserveDBQuery("member_history", time.Since(queryStart))
		if err != nil {
			return nil, fmt.Errorf("load member history: %w", err)
		}
		queryStart = time.Now()
		summary, err := s.attendance.Summary(ctx, job.Params.MemberID, &from, &to)
		s.metrics.ObserveDBQuery("member_summary", time.Since(queryStart))
		if err != nil {
			return nil, fmt.Errorf("load member summary: %w", err)
		}
		dataset = memberDataset(rows, summary)
		title = "Member Attendance"
		subtitle = fmt.Sprintf("%s to %s", job.Params.DateFrom, job.Params.DateTo)

	default:
		return nil, fmt.Errorf("unknown report type %q", job.Type)
	}

	switch job.Params.Format {
	case models.ReportFormatCSV:
		return s.csv.Render(dataset)
	case models.ReportFormatPDF:
		return s.pdf.Render(dataset, title, subtitle)
	}
	return nil, fmt.Errorf("unknown report format %q", job.Params.Format)
}

func departmentDataset(rows []models.DepartmentReportRow) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{"Date", "Code", "Name", "Status"},
	}
	counts := map[models.AttendanceStatus]int{}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":   row.Date.Format("2006-01-02"),
			"Code":   row.Code,
			"Name":   row.FullName,
			"Status": string(row.Status),
		})
		counts[row.Status]++
	}
	dataset.Summary = []map[string]string{
		{"Date": "Total", "Code": fmt.Sprintf("%d", len(rows))},
		{"Date": "Present", "Code": fmt.Sprintf("%d", counts[models.AttendancePresent])},
		{"Date": "Late", "Code": fmt.Sprintf("%d", counts[models.AttendanceLate])},
		{"Date": "Absent", "Code": fmt.Sprintf("%d", counts[models.AttendanceAbsent])},
		{"Date": "Excused", "Code": fmt.Sprintf("%d", counts[models.AttendanceExcused])},
	}
	return dataset
}

func memberDataset(rows []models.AttendanceHistoryRow, summary *models.AttendanceSummary) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{"Date", "Schedule", "Status", "Marked At"},
	}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":      row.Date.Format("2006-01-02"),
			"Schedule":  row.ScheduleName,
			"Status":    string(row.Status),
			"Marked At": row.MarkedAt.Format(time.RFC3339),
		})
	}
	if summary != nil {
		dataset.Summary = []map[string]string{
			{"Date": "Total", "Schedule": fmt.Sprintf("%d", summary.Total)},
			{"Date": "Attendance Rate", "Schedule": fmt.Sprintf("%.1f%%", summary.Rate())},
		}
	}
	return dataset
}
