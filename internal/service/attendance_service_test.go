package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartattend/smartattend-api/internal/models"
	appErrors "github.com/smartattend/smartattend-api/pkg/errors"
)

type mockAttendanceRepo struct {
	upserted  []*models.AttendanceRecord
	bulkMode  models.BulkOperationMode
	conflicts []models.AttendanceBulkConflict
	records   []models.AttendanceRecord
	history   []models.AttendanceHistoryRow
	summary   *models.AttendanceSummary
}

func (m *mockAttendanceRepo) FindBySessionAndMember(ctx context.Context, sessionID, memberID string) (*models.AttendanceRecord, error) {
	return nil, sql.ErrNoRows
}

func (m *mockAttendanceRepo) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	return m.records, nil
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	m.upserted = append(m.upserted, record)
	return nil
}

func (m *mockAttendanceRepo) BulkUpsert(ctx context.Context, records []*models.AttendanceRecord, mode models.BulkOperationMode) ([]models.AttendanceBulkConflict, error) {
	m.upserted = append(m.upserted, records...)
	m.bulkMode = mode
	return m.conflicts, nil
}

func (m *mockAttendanceRepo) History(ctx context.Context, memberID string, from, to *time.Time, limit int) ([]models.AttendanceHistoryRow, error) {
	return m.history, nil
}

func (m *mockAttendanceRepo) Summary(ctx context.Context, memberID string, from, to *time.Time) (*models.AttendanceSummary, error) {
	return m.summary, nil
}

type mockAttendanceSessions struct {
	session *models.AttendanceSession
}

func (m *mockAttendanceSessions) FindByID(ctx context.Context, tenantID, id string) (*models.AttendanceSession, error) {
	if m.session == nil {
		return nil, sql.ErrNoRows
	}
	return m.session, nil
}

type mockAttendanceMembers struct {
	members map[string]*models.MemberDetail
}

func (m *mockAttendanceMembers) FindByID(ctx context.Context, tenantID, id string) (*models.MemberDetail, error) {
	member, ok := m.members[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return member, nil
}

func attendanceValidator(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	require.NoError(t, RegisterAttendanceValidators(v))
	return v
}

func openSession() *mockAttendanceSessions {
	return &mockAttendanceSessions{session: &models.AttendanceSession{ID: "s1", TenantID: "t1", State: models.SessionStateOpen}}
}

func knownMembers(ids ...string) *mockAttendanceMembers {
	members := make(map[string]*models.MemberDetail, len(ids))
	for _, id := range ids {
		members[id] = &models.MemberDetail{Member: models.Member{ID: id, TenantID: "t1"}}
	}
	return &mockAttendanceMembers{members: members}
}

func TestAttendanceServiceMark(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := NewAttendanceService(repo, openSession(), knownMembers("m1"), nil, attendanceValidator(t), zap.NewNop(), 0)

	record, err := svc.Mark(context.Background(), "t1", "s1", "u1", MarkRequest{MemberID: "m1", Status: models.AttendancePresent})
	require.NoError(t, err)
	assert.Equal(t, "s1", record.SessionID)
	assert.Equal(t, "u1", record.MarkedBy)
	require.Len(t, repo.upserted, 1)
}

func TestAttendanceServiceMarkLockedSession(t *testing.T) {
	sessions := &mockAttendanceSessions{session: &models.AttendanceSession{ID: "s1", TenantID: "t1", State: models.SessionStateLocked}}
	svc := NewAttendanceService(&mockAttendanceRepo{}, sessions, knownMembers("m1"), nil, attendanceValidator(t), zap.NewNop(), 0)

	_, err := svc.Mark(context.Background(), "t1", "s1", "u1", MarkRequest{MemberID: "m1", Status: models.AttendancePresent})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSessionFinalized.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceMarkInvalidStatus(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceRepo{}, openSession(), knownMembers("m1"), nil, attendanceValidator(t), zap.NewNop(), 0)

	_, err := svc.Mark(context.Background(), "t1", "s1", "u1", MarkRequest{MemberID: "m1", Status: "vacationing"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceBulkMarkDefaultsAtomic(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := NewAttendanceService(repo, openSession(), knownMembers("m1", "m2"), nil, attendanceValidator(t), zap.NewNop(), 0)

	res, err := svc.BulkMark(context.Background(), "t1", "s1", "u1", BulkMarkRequest{Marks: []MarkRequest{
		{MemberID: "m1", Status: models.AttendancePresent},
		{MemberID: "m2", Status: models.AttendanceLate},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)
	assert.Empty(t, res.Conflicts)
	assert.Equal(t, models.BulkModeAtomic, repo.bulkMode)
}

func TestAttendanceServiceBulkMarkPartialConflicts(t *testing.T) {
	repo := &mockAttendanceRepo{conflicts: []models.AttendanceBulkConflict{{MemberID: "m2", Reason: "constraint violation"}}}
	svc := NewAttendanceService(repo, openSession(), knownMembers("m1", "m2"), nil, attendanceValidator(t), zap.NewNop(), 0)

	res, err := svc.BulkMark(context.Background(), "t1", "s1", "u1", BulkMarkRequest{
		Mode: models.BulkModePartialOnError,
		Marks: []MarkRequest{
			{MemberID: "m1", Status: models.AttendancePresent},
			{MemberID: "m2", Status: models.AttendanceAbsent},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "m2", res.Conflicts[0].MemberID)
}

func TestAttendanceServiceBulkMarkDuplicateMember(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceRepo{}, openSession(), knownMembers("m1"), nil, attendanceValidator(t), zap.NewNop(), 0)

	_, err := svc.BulkMark(context.Background(), "t1", "s1", "u1", BulkMarkRequest{Marks: []MarkRequest{
		{MemberID: "m1", Status: models.AttendancePresent},
		{MemberID: "m1", Status: models.AttendanceLate},
	}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceBulkMarkTooLarge(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceRepo{}, openSession(), knownMembers("m1", "m2"), nil, attendanceValidator(t), zap.NewNop(), 1)

	_, err := svc.BulkMark(context.Background(), "t1", "s1", "u1", BulkMarkRequest{Marks: []MarkRequest{
		{MemberID: "m1", Status: models.AttendancePresent},
		{MemberID: "m2", Status: models.AttendanceLate},
	}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceSummary(t *testing.T) {
	repo := &mockAttendanceRepo{summary: &models.AttendanceSummary{MemberID: "m1", Total: 10, Present: 8, Late: 1, Absent: 1, Percentage: 90}}
	svc := NewAttendanceService(repo, openSession(), knownMembers("m1"), nil, attendanceValidator(t), zap.NewNop(), 0)

	summary, err := svc.Summary(context.Background(), "t1", "m1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Total)
	assert.InDelta(t, 90.0, summary.Percentage, 0.01)
}

func TestAttendanceServiceSummaryUnknownMember(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceRepo{}, openSession(), knownMembers(), nil, attendanceValidator(t), zap.NewNop(), 0)

	_, err := svc.Summary(context.Background(), "t1", "missing", nil, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceMarkInvalidatesDashboards(t *testing.T) {
	dashboards := &mockDashboardInvalidator{}
	svc := NewAttendanceService(&mockAttendanceRepo{}, openSession(), knownMembers("m1", "m2"), dashboards, attendanceValidator(t), zap.NewNop(), 0)

	_, err := svc.Mark(context.Background(), "t1", "s1", "u1", MarkRequest{MemberID: "m1", Status: models.AttendancePresent})
	require.NoError(t, err)

	_, err = svc.BulkMark(context.Background(), "t1", "s1", "u1", BulkMarkRequest{Marks: []MarkRequest{
		{MemberID: "m2", Status: models.AttendanceLate},
	}})
	require.NoError(t, err)

	assert.Equal(t, []string{"t1", "t1"}, dashboards.tenants)
}
