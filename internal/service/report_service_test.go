package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartattend/smartattend-api/internal/models"
	appErrors "github.com/smartattend/smartattend-api/pkg/errors"
	"github.com/smartattend/smartattend-api/pkg/jobs"
	"github.com/smartattend/smartattend-api/pkg/storage"
)

type mockReportRepo struct {
	mu        sync.Mutex
	jobsByID  map[string]*models.ReportJob
	created   *models.ReportJob
	failedMsg string
}

func (m *mockReportRepo) statusOf(id string) models.ReportStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobsByID[id].Status
}

func (m *mockReportRepo) FindByID(_ context.Context, tenantID, id string) (*models.ReportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobsByID[id]
	if !ok || job.TenantID != tenantID {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (m *mockReportRepo) ListByTenant(_ context.Context, tenantID string, _ int) ([]models.ReportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ReportJob
	for _, job := range m.jobsByID {
		if job.TenantID == tenantID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (m *mockReportRepo) Create(_ context.Context, job *models.ReportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.ID = "job-1"
	job.CreatedAt = time.Now().UTC()
	if m.jobsByID == nil {
		m.jobsByID = map[string]*models.ReportJob{}
	}
	m.jobsByID[job.ID] = job
	m.created = job
	return nil
}

func (m *mockReportRepo) MarkRunning(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobsByID[id]
	job.Status = models.ReportStatusRunning
	job.StartedAt = &at
	return nil
}

func (m *mockReportRepo) MarkCompleted(_ context.Context, id, filePath, resultURL string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobsByID[id]
	job.Status = models.ReportStatusCompleted
	job.FilePath = &filePath
	job.ResultURL = &resultURL
	job.FinishedAt = &at
	return nil
}

func (m *mockReportRepo) MarkFailed(_ context.Context, id, message string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobsByID[id]
	job.Status = models.ReportStatusFailed
	job.ErrorMessage = &message
	job.FinishedAt = &at
	m.failedMsg = message
	return nil
}

func (m *mockReportRepo) DeleteOlderThan(_ context.Context, _ time.Time) ([]string, error) {
	return nil, nil
}

type mockReportAttendance struct {
	deptRows []models.DepartmentReportRow
	deptErr  error
	history  []models.AttendanceHistoryRow
	summary  *models.AttendanceSummary
}

func (m *mockReportAttendance) DepartmentReport(context.Context, string, string, time.Time, time.Time) ([]models.DepartmentReportRow, error) {
	return m.deptRows, m.deptErr
}

func (m *mockReportAttendance) History(context.Context, string, *time.Time, *time.Time, int) ([]models.AttendanceHistoryRow, error) {
	return m.history, nil
}

func (m *mockReportAttendance) Summary(context.Context, string, *time.Time, *time.Time) (*models.AttendanceSummary, error) {
	return m.summary, nil
}

func newReportService(t *testing.T, repo *mockReportRepo, attendance *mockReportAttendance) *ReportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewReportService(repo, attendance, store, signer, nil, nil, zap.NewNop(), jobs.QueueConfig{Workers: 1, BufferSize: 4})
}

func departmentRequest() CreateReportRequest {
	return CreateReportRequest{
		Type:         models.ReportTypeDepartmentAttendance,
		Format:       models.ReportFormatCSV,
		DepartmentID: "d1",
		DateFrom:     "2026-08-01",
		DateTo:       "2026-08-31",
	}
}

func seedDepartmentJob(repo *mockReportRepo) *models.ReportJob {
	job := &models.ReportJob{
		ID:       "job-1",
		TenantID: "t1",
		Type:     models.ReportTypeDepartmentAttendance,
		Params: models.ReportJobParams{
			DepartmentID: "d1",
			DateFrom:     "2026-08-01",
			DateTo:       "2026-08-31",
			Format:       models.ReportFormatCSV,
		},
		Status:      models.ReportStatusQueued,
		RequestedBy: "admin",
	}
	repo.jobsByID = map[string]*models.ReportJob{job.ID: job}
	return job
}

func TestReportServiceRequestQueuesJob(t *testing.T) {
	repo := &mockReportRepo{}
	svc := newReportService(t, repo, &mockReportAttendance{})
	svc.Queue().Start(context.Background())
	defer svc.Queue().Stop()

	job, err := svc.Request(context.Background(), "t1", "admin", departmentRequest())

	require.NoError(t, err)
	assert.Equal(t, "admin", job.RequestedBy)
	assert.Eventually(t, func() bool {
		return repo.statusOf(job.ID) == models.ReportStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReportServiceRequestFailsJobWhenQueueDown(t *testing.T) {
	repo := &mockReportRepo{}
	svc := newReportService(t, repo, &mockReportAttendance{})

	_, err := svc.Request(context.Background(), "t1", "admin", departmentRequest())

	require.Error(t, err)
	assert.Equal(t, models.ReportStatusFailed, repo.jobsByID["job-1"].Status)
	assert.Equal(t, "queue unavailable", repo.failedMsg)
}

func TestReportServiceRequestRequiresDepartment(t *testing.T) {
	svc := newReportService(t, &mockReportRepo{}, &mockReportAttendance{})

	req := departmentRequest()
	req.DepartmentID = ""
	_, err := svc.Request(context.Background(), "t1", "admin", req)

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportServiceRequestRejectsInvertedRange(t *testing.T) {
	svc := newReportService(t, &mockReportRepo{}, &mockReportAttendance{})

	req := departmentRequest()
	req.DateFrom = "2026-08-31"
	req.DateTo = "2026-08-01"
	_, err := svc.Request(context.Background(), "t1", "admin", req)

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportServiceProcessCompletesJob(t *testing.T) {
	repo := &mockReportRepo{}
	attendance := &mockReportAttendance{
		deptRows: []models.DepartmentReportRow{
			{Date: time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC), Code: "S001", FullName: "Ada Lovelace", Status: models.AttendancePresent},
			{Date: time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC), Code: "S002", FullName: "Alan Turing", Status: models.AttendanceAbsent},
		},
	}
	svc := newReportService(t, repo, attendance)
	job := seedDepartmentJob(repo)

	err := svc.process(context.Background(), jobs.Job{ID: job.ID, Payload: reportPayload{TenantID: "t1", JobID: job.ID}})
	require.NoError(t, err)

	stored := repo.jobsByID[job.ID]
	assert.Equal(t, models.ReportStatusCompleted, stored.Status)
	require.NotNil(t, stored.ResultURL)

	file, relPath, err := svc.Download(context.Background(), *stored.ResultURL)
	require.NoError(t, err)
	defer file.Close()

	assert.True(t, strings.HasSuffix(relPath, ".csv"))
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Ada Lovelace")
	assert.Contains(t, string(content), "Total")
}

func TestReportServiceProcessMarksFailedOnRenderError(t *testing.T) {
	repo := &mockReportRepo{}
	attendance := &mockReportAttendance{deptErr: errors.New("boom")}
	svc := newReportService(t, repo, attendance)
	job := seedDepartmentJob(repo)

	err := svc.process(context.Background(), jobs.Job{ID: job.ID, Payload: reportPayload{TenantID: "t1", JobID: job.ID}})
	require.NoError(t, err)

	stored := repo.jobsByID[job.ID]
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	assert.Contains(t, repo.failedMsg, "boom")
}

func TestReportServiceDownloadRejectsTamperedToken(t *testing.T) {
	svc := newReportService(t, &mockReportRepo{}, &mockReportAttendance{})

	_, _, err := svc.Download(context.Background(), "job-1.123.cGF0aA.deadbeef")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestReportServiceProcessRecordsQueryMetrics(t *testing.T) {
	repo := &mockReportRepo{}
	seedDepartmentJob(repo)
	metrics := NewMetricsService(nil)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewReportService(repo, &mockReportAttendance{}, store, signer, metrics, nil, zap.NewNop(), jobs.QueueConfig{Workers: 1, BufferSize: 4})

	err = svc.process(context.Background(), jobs.Job{ID: "job-1", Payload: reportPayload{TenantID: "t1", JobID: "job-1"}})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `db_query_duration_seconds_count{query="department_report"} 1`)
	assert.Contains(t, body, `report_jobs_total{outcome="completed",type="department_attendance"} 1`)
}
