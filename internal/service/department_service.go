package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/smartattend/smartattend-api/internal/models"
	appErrors "github.com/smartattend/smartattend-api/pkg/errors"
)

type departmentRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Department, error)
	FindByCode(ctx context.Context, tenantID, code string) (*models.Department, error)
	List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, int, error)
	Create(ctx context.Context, dept *models.Department) error
	Update(ctx context.Context, dept *models.Department) error
	Delete(ctx context.Context, tenantID, id string) error
}

// CreateDepartmentRequest provisions a department within a tenant.
type CreateDepartmentRequest struct {
	Name   string  `json:"name" validate:"required,min=2,max=120"`
	Code   string  `json:"code" validate:"required,min=1,max=30"`
	HeadID *string `json:"head_id,omitempty"`
}

// UpdateDepartmentRequest updates mutable department fields.
type UpdateDepartmentRequest struct {
	Name   *string `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	HeadID *string `json:"head_id,omitempty"`
}

// DepartmentService manages departments within a tenant.
type DepartmentService struct {
	repo      departmentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDepartmentService constructs a DepartmentService instance.
func NewDepartmentService(repo departmentRepository, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DepartmentService{repo: repo, validator: validate, logger: logger}
}

// Get returns a department within the tenant.
func (s *DepartmentService) Get(ctx context.Context, tenantID, id string) (*models.Department, error) {
	dept, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	return dept, nil
}

// List returns departments matching the filter.
func (s *DepartmentService) List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, *models.Pagination, error) {
	depts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return depts, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Create provisions a department. Codes are unique per tenant.
func (s *DepartmentService) Create(ctx context.Context, tenantID string, req CreateDepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create department payload")
	}

	if _, err := s.repo.FindByCode(ctx, tenantID, req.Code); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("code %q is already in use", req.Code))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check code")
	}

	dept := &models.Department{
		TenantID: tenantID,
		Name:     req.Name,
		Code:     req.Code,
		HeadID:   req.HeadID,
	}
	if err := s.repo.Create(ctx, dept); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	return dept, nil
}

// Update applies partial updates to a department.
func (s *DepartmentService) Update(ctx context.Context, tenantID, id string, req UpdateDepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update department payload")
	}

	dept, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		dept.Name = *req.Name
	}
	if req.HeadID != nil {
		dept.HeadID = req.HeadID
	}

	if err := s.repo.Update(ctx, dept); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update department")
	}
	return dept, nil
}

// Delete removes a department.
func (s *DepartmentService) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := s.Get(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete department")
	}
	return nil
}
