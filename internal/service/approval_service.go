package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/smartattend/smartattend-api/internal/models"
	"github.com/smartattend/smartattend-api/internal/repository"
	appErrors "github.com/smartattend/smartattend-api/pkg/errors"
)

type approvalRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.ApprovalDetail, error)
	List(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalDetail, int, error)
	Decide(ctx context.Context, tenantID, id string, status models.ApprovalStatus, reviewerID string, reason *string, at time.Time) error
}

type approvalUserRepository interface {
	UpdateStatus(ctx context.Context, id string, status models.UserStatus, updatedAt time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// DecisionRequest is an admin's verdict on a pending registration.
type DecisionRequest struct {
	Approve bool    `json:"approve"`
	Reason  *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// ApprovalService reviews pending registrations. Approving activates the
// applicant's account; rejecting marks it rejected. Decisions are final.
type ApprovalService struct {
	repo       approvalRepository
	users      approvalUserRepository
	dashboards dashboardInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewApprovalService constructs an ApprovalService instance.
func NewApprovalService(repo approvalRepository, users approvalUserRepository, dashboards dashboardInvalidator, validate *validator.Validate, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ApprovalService{repo: repo, users: users, dashboards: dashboards, validator: validate, logger: logger}
}

// Get returns one approval with applicant fields.
func (s *ApprovalService) Get(ctx context.Context, tenantID, id string) (*models.ApprovalDetail, error) {
	approval, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "approval not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval")
	}
	return approval, nil
}

// List returns approvals matching the filter.
func (s *ApprovalService) List(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalDetail, *models.Pagination, error) {
	approvals, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approvals")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return approvals, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Decide finalises a pending approval and moves the applicant's account to
// active or rejected accordingly.
func (s *ApprovalService) Decide(ctx context.Context, tenantID, id, reviewerID string, req DecisionRequest) (*models.ApprovalDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	approval, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if approval.Status != models.ApprovalPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "approval has already been decided")
	}

	status := models.ApprovalRejected
	userStatus := models.UserStatusRejected
	if req.Approve {
		status = models.ApprovalApproved
		userStatus = models.UserStatusActive
	}

	now := time.Now().UTC()
	if err := s.repo.Decide(ctx, tenantID, id, status, reviewerID, req.Reason, now); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "approval has already been decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}

	if err := s.users.UpdateStatus(ctx, approval.UserID, userStatus, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update applicant status")
	}

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &reviewerID,
		Action:     models.AuditActionApprovalDecision,
		Resource:   "approval",
		ResourceID: &id,
		NewValues:  []byte(fmt.Sprintf(`{"status":%q,"user_id":%q}`, status, approval.UserID)),
	}); err != nil {
		s.logger.Warn("failed to record approval audit log", zap.Error(err))
	}

	if s.dashboards != nil {
		s.dashboards.InvalidateTenant(ctx, tenantID)
	}

	return s.Get(ctx, tenantID, id)
}
