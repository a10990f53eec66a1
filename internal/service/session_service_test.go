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
	"github.com/smartattend/smartattend-api/internal/repository"
	appErrors "github.com/smartattend/smartattend-api/pkg/errors"
)

type mockSessionRepo struct {
	sessions map[string]*models.AttendanceSession
	active   *models.AttendanceSession
	created  *models.AttendanceSession
	lockErr  error
	closeErr error
	roster   []models.SessionRosterRow
}

func (m *mockSessionRepo) FindByID(ctx context.Context, tenantID, id string) (*models.AttendanceSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

func (m *mockSessionRepo) FindActive(ctx context.Context, scheduleID string, date time.Time) (*models.AttendanceSession, error) {
	if m.active == nil {
		return nil, sql.ErrNoRows
	}
	return m.active, nil
}

func (m *mockSessionRepo) List(ctx context.Context, filter models.SessionFilter) ([]models.AttendanceSession, int, error) {
	var out []models.AttendanceSession
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.AttendanceSession) error {
	session.ID = "s1"
	session.OpenedAt = time.Now().UTC()
	m.created = session
	if m.sessions == nil {
		m.sessions = make(map[string]*models.AttendanceSession)
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *mockSessionRepo) Lock(ctx context.Context, tenantID, id, actorID string, at time.Time) error {
	if m.lockErr != nil {
		return m.lockErr
	}
	if s, ok := m.sessions[id]; ok {
		s.State = models.SessionStateLocked
		s.LockedBy = &actorID
		s.LockedAt = &at
	}
	return nil
}

func (m *mockSessionRepo) Close(ctx context.Context, tenantID, id, actorID string, at time.Time) error {
	if m.closeErr != nil {
		return m.closeErr
	}
	if s, ok := m.sessions[id]; ok {
		s.State = models.SessionStateClosed
		s.ClosedBy = &actorID
		s.ClosedAt = &at
	}
	return nil
}

func (m *mockSessionRepo) Roster(ctx context.Context, sessionID string) ([]models.SessionRosterRow, error) {
	return m.roster, nil
}

type mockScheduleLookup struct {
	schedule *models.Schedule
}

func (m *mockScheduleLookup) FindByID(ctx context.Context, tenantID, id string) (*models.Schedule, error) {
	if m.schedule == nil {
		return nil, sql.ErrNoRows
	}
	return m.schedule, nil
}

type mockAuditSink struct {
	logs []*models.AuditLog
}

func (m *mockAuditSink) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type mockSessionSettings struct {
	autoClose bool
	late      int
	err       error
}

func (m *mockSessionSettings) AutoCloseOnLock(ctx context.Context, tenantID string) (bool, error) {
	return m.autoClose, m.err
}

func (m *mockSessionSettings) LateThreshold(ctx context.Context, tenantID string) (int, error) {
	return m.late, m.err
}

type mockDashboardInvalidator struct {
	tenants []string
}

func (m *mockDashboardInvalidator) InvalidateTenant(ctx context.Context, tenantID string) {
	m.tenants = append(m.tenants, tenantID)
}

func TestSessionServiceOpen(t *testing.T) {
	repo := &mockSessionRepo{}
	audit := &mockAuditSink{}
	svc := NewSessionService(repo, &mockScheduleLookup{schedule: &models.Schedule{ID: "sch1"}}, audit, nil, nil, validator.New(), zap.NewNop())

	session, err := svc.Open(context.Background(), "t1", "u1", OpenSessionRequest{ScheduleID: "sch1", Date: "2026-03-02"})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateOpen, session.State)
	assert.Equal(t, "u1", session.OpenedBy)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionSessionOpen, audit.logs[0].Action)
}

func TestSessionServiceOpenDuplicate(t *testing.T) {
	repo := &mockSessionRepo{active: &models.AttendanceSession{ID: "s0", State: models.SessionStateOpen}}
	svc := NewSessionService(repo, &mockScheduleLookup{schedule: &models.Schedule{ID: "sch1"}}, &mockAuditSink{}, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.Open(context.Background(), "t1", "u1", OpenSessionRequest{ScheduleID: "sch1", Date: "2026-03-02"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceOpenUnknownSchedule(t *testing.T) {
	svc := NewSessionService(&mockSessionRepo{}, &mockScheduleLookup{}, &mockAuditSink{}, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.Open(context.Background(), "t1", "u1", OpenSessionRequest{ScheduleID: "missing", Date: "2026-03-02"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceTransitionLock(t *testing.T) {
	repo := &mockSessionRepo{sessions: map[string]*models.AttendanceSession{
		"s1": {ID: "s1", TenantID: "t1", State: models.SessionStateOpen},
	}}
	audit := &mockAuditSink{}
	svc := NewSessionService(repo, &mockScheduleLookup{}, audit, nil, nil, validator.New(), zap.NewNop())

	session, err := svc.Transition(context.Background(), "t1", "s1", "u1", models.SessionStateLocked)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateLocked, session.State)
	require.NotNil(t, session.LockedBy)
	assert.Equal(t, "u1", *session.LockedBy)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionSessionLock, audit.logs[0].Action)
}

func TestSessionServiceTransitionSkipsState(t *testing.T) {
	repo := &mockSessionRepo{sessions: map[string]*models.AttendanceSession{
		"s1": {ID: "s1", TenantID: "t1", State: models.SessionStateOpen},
	}}
	svc := NewSessionService(repo, &mockScheduleLookup{}, &mockAuditSink{}, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.Transition(context.Background(), "t1", "s1", "u1", models.SessionStateClosed)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceTransitionBackward(t *testing.T) {
	repo := &mockSessionRepo{sessions: map[string]*models.AttendanceSession{
		"s1": {ID: "s1", TenantID: "t1", State: models.SessionStateLocked},
	}}
	svc := NewSessionService(repo, &mockScheduleLookup{}, &mockAuditSink{}, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.Transition(context.Background(), "t1", "s1", "u1", models.SessionStateOpen)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceTransitionRace(t *testing.T) {
	repo := &mockSessionRepo{
		sessions: map[string]*models.AttendanceSession{
			"s1": {ID: "s1", TenantID: "t1", State: models.SessionStateOpen},
		},
		lockErr: repository.ErrStateConflict,
	}
	svc := NewSessionService(repo, &mockScheduleLookup{}, &mockAuditSink{}, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.Transition(context.Background(), "t1", "s1", "u1", models.SessionStateLocked)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceRoster(t *testing.T) {
	status := models.AttendancePresent
	repo := &mockSessionRepo{
		sessions: map[string]*models.AttendanceSession{
			"s1": {ID: "s1", TenantID: "t1", State: models.SessionStateOpen},
		},
		roster: []models.SessionRosterRow{
			{MemberID: "m1", FullName: "Ada Lovelace", Code: "EMP-1", Status: &status},
			{MemberID: "m2", FullName: "Grace Hopper", Code: "EMP-2"},
		},
	}
	svc := NewSessionService(repo, &mockScheduleLookup{}, &mockAuditSink{}, nil, nil, validator.New(), zap.NewNop())

	roster, _, err := svc.Roster(context.Background(), "t1", "s1")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Nil(t, roster[1].Status)
}

func TestSessionServiceRosterReportsLateThreshold(t *testing.T) {
	repo := &mockSessionRepo{
		sessions: map[string]*models.AttendanceSession{
			"s1": {ID: "s1", TenantID: "t1", State: models.SessionStateOpen},
		},
	}
	svc := NewSessionService(repo, &mockScheduleLookup{}, &mockAuditSink{}, &mockSessionSettings{late: 30}, nil, validator.New(), zap.NewNop())

	_, lateThreshold, err := svc.Roster(context.Background(), "t1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 30, lateThreshold)
}

func TestSessionServiceLockAutoCloses(t *testing.T) {
	repo := &mockSessionRepo{sessions: map[string]*models.AttendanceSession{
		"s1": {ID: "s1", TenantID: "t1", State: models.SessionStateOpen},
	}}
	audit := &mockAuditSink{}
	svc := NewSessionService(repo, &mockScheduleLookup{}, audit, &mockSessionSettings{autoClose: true}, nil, validator.New(), zap.NewNop())

	session, err := svc.Transition(context.Background(), "t1", "s1", "u1", models.SessionStateLocked)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateClosed, session.State)
	require.NotNil(t, session.ClosedBy)
	assert.Equal(t, "u1", *session.ClosedBy)
	require.Len(t, audit.logs, 2)
	assert.Equal(t, models.AuditActionSessionLock, audit.logs[0].Action)
	assert.Equal(t, models.AuditActionSessionClose, audit.logs[1].Action)
}

func TestSessionServiceLockWithoutAutoClose(t *testing.T) {
	repo := &mockSessionRepo{sessions: map[string]*models.AttendanceSession{
		"s1": {ID: "s1", TenantID: "t1", State: models.SessionStateOpen},
	}}
	svc := NewSessionService(repo, &mockScheduleLookup{}, &mockAuditSink{}, &mockSessionSettings{autoClose: false}, nil, validator.New(), zap.NewNop())

	session, err := svc.Transition(context.Background(), "t1", "s1", "u1", models.SessionStateLocked)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateLocked, session.State)
}

func TestSessionServiceTransitionInvalidatesDashboards(t *testing.T) {
	repo := &mockSessionRepo{sessions: map[string]*models.AttendanceSession{
		"s1": {ID: "s1", TenantID: "t1", State: models.SessionStateOpen},
	}}
	dashboards := &mockDashboardInvalidator{}
	svc := NewSessionService(repo, &mockScheduleLookup{}, &mockAuditSink{}, nil, dashboards, validator.New(), zap.NewNop())

	_, err := svc.Transition(context.Background(), "t1", "s1", "u1", models.SessionStateLocked)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, dashboards.tenants)
}
