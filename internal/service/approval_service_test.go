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

type mockApprovalRepo struct {
	approval  *models.ApprovalDetail
	decideErr error
	decided   *models.ApprovalStatus
}

func (m *mockApprovalRepo) FindByID(ctx context.Context, tenantID, id string) (*models.ApprovalDetail, error) {
	if m.approval == nil {
		return nil, sql.ErrNoRows
	}
	return m.approval, nil
}

func (m *mockApprovalRepo) List(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalDetail, int, error) {
	if m.approval == nil {
		return nil, 0, nil
	}
	return []models.ApprovalDetail{*m.approval}, 1, nil
}

func (m *mockApprovalRepo) Decide(ctx context.Context, tenantID, id string, status models.ApprovalStatus, reviewerID string, reason *string, at time.Time) error {
	if m.decideErr != nil {
		return m.decideErr
	}
	m.decided = &status
	m.approval.Status = status
	m.approval.ReviewedBy = &reviewerID
	m.approval.ReviewedAt = &at
	return nil
}

type mockApprovalUsers struct {
	statusUpdates map[string]models.UserStatus
	auditLogs     []*models.AuditLog
}

func (m *mockApprovalUsers) UpdateStatus(ctx context.Context, id string, status models.UserStatus, updatedAt time.Time) error {
	if m.statusUpdates == nil {
		m.statusUpdates = make(map[string]models.UserStatus)
	}
	m.statusUpdates[id] = status
	return nil
}

func (m *mockApprovalUsers) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func pendingApproval() *models.ApprovalDetail {
	return &models.ApprovalDetail{
		Approval: models.Approval{ID: "ap1", TenantID: "t1", UserID: "u2", RequestedRole: models.RoleEmployee, Status: models.ApprovalPending},
		Email:    "applicant@example.com",
		FullName: "Applicant",
	}
}

func TestApprovalServiceApprove(t *testing.T) {
	repo := &mockApprovalRepo{approval: pendingApproval()}
	users := &mockApprovalUsers{}
	svc := NewApprovalService(repo, users, nil, validator.New(), zap.NewNop())

	detail, err := svc.Decide(context.Background(), "t1", "ap1", "admin", DecisionRequest{Approve: true})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, detail.Status)
	assert.Equal(t, models.UserStatusActive, users.statusUpdates["u2"])
	require.Len(t, users.auditLogs, 1)
	assert.Equal(t, models.AuditActionApprovalDecision, users.auditLogs[0].Action)
}

func TestApprovalServiceReject(t *testing.T) {
	repo := &mockApprovalRepo{approval: pendingApproval()}
	users := &mockApprovalUsers{}
	svc := NewApprovalService(repo, users, nil, validator.New(), zap.NewNop())

	reason := "duplicate request"
	detail, err := svc.Decide(context.Background(), "t1", "ap1", "admin", DecisionRequest{Approve: false, Reason: &reason})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, detail.Status)
	assert.Equal(t, models.UserStatusRejected, users.statusUpdates["u2"])
}

func TestApprovalServiceDecideTwice(t *testing.T) {
	approved := pendingApproval()
	approved.Status = models.ApprovalApproved
	svc := NewApprovalService(&mockApprovalRepo{approval: approved}, &mockApprovalUsers{}, nil, validator.New(), zap.NewNop())

	_, err := svc.Decide(context.Background(), "t1", "ap1", "admin", DecisionRequest{Approve: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceDecideRace(t *testing.T) {
	repo := &mockApprovalRepo{approval: pendingApproval(), decideErr: repository.ErrStateConflict}
	svc := NewApprovalService(repo, &mockApprovalUsers{}, nil, validator.New(), zap.NewNop())

	_, err := svc.Decide(context.Background(), "t1", "ap1", "admin", DecisionRequest{Approve: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceGetNotFound(t *testing.T) {
	svc := NewApprovalService(&mockApprovalRepo{}, &mockApprovalUsers{}, nil, validator.New(), zap.NewNop())

	_, err := svc.Get(context.Background(), "t1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceDecideInvalidatesDashboards(t *testing.T) {
	repo := &mockApprovalRepo{approval: pendingApproval()}
	dashboards := &mockDashboardInvalidator{}
	svc := NewApprovalService(repo, &mockApprovalUsers{}, dashboards, validator.New(), zap.NewNop())

	_, err := svc.Decide(context.Background(), "t1", "ap1", "admin", DecisionRequest{Approve: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, dashboards.tenants)
}
