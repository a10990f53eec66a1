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
	appErrors "github.com/smartattend/smartattend-api/pkg/errors"
)

type memberRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.MemberDetail, error)
	FindByUserID(ctx context.Context, tenantID, userID string) (*models.MemberDetail, error)
	FindByCode(ctx context.Context, tenantID, code string) (*models.MemberDetail, error)
	List(ctx context.Context, filter models.MemberFilter) ([]models.MemberDetail, int, error)
	Create(ctx context.Context, member *models.Member) error
	Update(ctx context.Context, member *models.Member) error
	Deactivate(ctx context.Context, tenantID, id string) error
}

type memberUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type memberDepartmentRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Department, error)
}

// CreateMemberRequest enrols a user onto the tenant roster.
type CreateMemberRequest struct {
	UserID       string            `json:"user_id" validate:"required"`
	DepartmentID *string           `json:"department_id,omitempty"`
	Kind         models.MemberKind `json:"kind" validate:"required,oneof=student employee"`
	Code         string            `json:"code" validate:"required,min=1,max=40"`
	Position     *string           `json:"position,omitempty" validate:"omitempty,max=120"`
	JoinedAt     *time.Time        `json:"joined_at,omitempty"`
}

// UpdateMemberRequest updates mutable roster fields.
type UpdateMemberRequest struct {
	DepartmentID *string `json:"department_id,omitempty"`
	Position     *string `json:"position,omitempty" validate:"omitempty,max=120"`
	Active       *bool   `json:"active,omitempty"`
}

// MemberService manages the tenant roster.
type MemberService struct {
	repo        memberRepository
	users       memberUserRepository
	departments memberDepartmentRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewMemberService constructs a MemberService instance.
func NewMemberService(repo memberRepository, users memberUserRepository, departments memberDepartmentRepository, validate *validator.Validate, logger *zap.Logger) *MemberService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MemberService{repo: repo, users: users, departments: departments, validator: validate, logger: logger}
}

// Get returns a roster entry within the tenant.
func (s *MemberService) Get(ctx context.Context, tenantID, id string) (*models.MemberDetail, error) {
	member, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load member")
	}
	return member, nil
}

// GetByUser resolves the roster entry belonging to a user account.
func (s *MemberService) GetByUser(ctx context.Context, tenantID, userID string) (*models.MemberDetail, error) {
	member, err := s.repo.FindByUserID(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no roster entry for this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load member")
	}
	return member, nil
}

// List returns roster entries matching the filter.
func (s *MemberService) List(ctx context.Context, filter models.MemberFilter) ([]models.MemberDetail, *models.Pagination, error) {
	members, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list members")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return members, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Create enrols a user onto the roster. The user must belong to the tenant
// and the code must be unique within it.
func (s *MemberService) Create(ctx context.Context, tenantID string, req CreateMemberRequest) (*models.MemberDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create member payload")
	}

	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.TenantID == nil || *user.TenantID != tenantID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user belongs to a different organisation")
	}

	if req.DepartmentID != nil {
		if _, err := s.departments.FindByID(ctx, tenantID, *req.DepartmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
		}
	}

	if _, err := s.repo.FindByCode(ctx, tenantID, req.Code); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("code %q is already in use", req.Code))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check code")
	}

	if _, err := s.repo.FindByUserID(ctx, tenantID, req.UserID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user is already on the roster")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check roster")
	}

	joinedAt := time.Now().UTC()
	if req.JoinedAt != nil {
		joinedAt = *req.JoinedAt
	}

	member := &models.Member{
		TenantID:     tenantID,
		UserID:       req.UserID,
		DepartmentID: req.DepartmentID,
		Kind:         req.Kind,
		Code:         req.Code,
		Position:     req.Position,
		JoinedAt:     joinedAt,
		Active:       true,
	}
	if err := s.repo.Create(ctx, member); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create member")
	}

	return s.Get(ctx, tenantID, member.ID)
}

// Update applies partial updates to a roster entry.
func (s *MemberService) Update(ctx context.Context, tenantID, id string, req UpdateMemberRequest) (*models.MemberDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update member payload")
	}

	detail, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	member := detail.Member

	if req.DepartmentID != nil {
		if _, err := s.departments.FindByID(ctx, tenantID, *req.DepartmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
		}
		member.DepartmentID = req.DepartmentID
	}
	if req.Position != nil {
		member.Position = req.Position
	}
	if req.Active != nil {
		member.Active = *req.Active
	}

	if err := s.repo.Update(ctx, &member); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update member")
	}
	return s.Get(ctx, tenantID, id)
}

// Deactivate removes a member from the active roster without deleting their
// attendance history.
func (s *MemberService) Deactivate(ctx context.Context, tenantID, id string) error {
	if _, err := s.Get(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, tenantID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate member")
	}
	return nil
}
