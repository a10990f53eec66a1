package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/smartattend/smartattend-api/internal/models"
	appErrors "github.com/smartattend/smartattend-api/pkg/errors"
)

type tenantRepository interface {
	FindByID(ctx context.Context, id string) (*models.Tenant, error)
	FindBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	List(ctx context.Context, filter models.TenantFilter) ([]models.Tenant, int, error)
	Create(ctx context.Context, tenant *models.Tenant) error
	Update(ctx context.Context, tenant *models.Tenant) error
	UpdateStatus(ctx context.Context, id string, status models.TenantStatus, suspendedAt *time.Time) error
}

type tenantAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateTenantRequest provisions a new organisation on the platform.
type CreateTenantRequest struct {
	Name         string            `json:"name" validate:"required,min=2,max=120"`
	Slug         string            `json:"slug" validate:"omitempty,min=2,max=60"`
	Type         models.TenantType `json:"type" validate:"required,oneof=school corporate"`
	ContactEmail string            `json:"contact_email" validate:"required,email"`
}

// UpdateTenantRequest updates mutable organisation fields.
type UpdateTenantRequest struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	ContactEmail *string `json:"contact_email,omitempty" validate:"omitempty,email"`
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// TenantService manages organisations. Suspending a tenant locks out all of
// its users until it is reactivated.
type TenantService struct {
	repo      tenantRepository
	audit     tenantAuditRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTenantService constructs a TenantService instance.
func NewTenantService(repo tenantRepository, audit tenantAuditRepository, validate *validator.Validate, logger *zap.Logger) *TenantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TenantService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// Get returns a tenant by ID.
func (s *TenantService) Get(ctx context.Context, id string) (*models.Tenant, error) {
	tenant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "organisation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load organisation")
	}
	return tenant, nil
}

// List returns tenants matching the filter.
func (s *TenantService) List(ctx context.Context, filter models.TenantFilter) ([]models.Tenant, *models.Pagination, error) {
	tenants, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list organisations")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return tenants, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Create provisions a new active tenant. The slug is derived from the name
// when not provided and must be unique.
func (s *TenantService) Create(ctx context.Context, actorID string, req CreateTenantRequest) (*models.Tenant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create organisation payload")
	}

	slug := req.Slug
	if slug == "" {
		slug = Slugify(req.Name)
	}

	if _, err := s.repo.FindBySlug(ctx, slug); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("slug %q is already taken", slug))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slug")
	}

	tenant := &models.Tenant{
		Name:         req.Name,
		Slug:         slug,
		Type:         req.Type,
		Status:       models.TenantStatusActive,
		ContactEmail: req.ContactEmail,
	}
	if err := s.repo.Create(ctx, tenant); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create organisation")
	}

	s.recordAudit(ctx, actorID, models.AuditActionTenantCreate, tenant.ID)
	return tenant, nil
}

// Update applies partial updates to a tenant.
func (s *TenantService) Update(ctx context.Context, actorID, id string, req UpdateTenantRequest) (*models.Tenant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update organisation payload")
	}

	tenant, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		tenant.Name = *req.Name
	}
	if req.ContactEmail != nil {
		tenant.ContactEmail = *req.ContactEmail
	}

	if err := s.repo.Update(ctx, tenant); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update organisation")
	}

	s.recordAudit(ctx, actorID, models.AuditActionTenantUpdate, tenant.ID)
	return tenant, nil
}

// Suspend locks a tenant out of the platform.
func (s *TenantService) Suspend(ctx context.Context, actorID, id string) (*models.Tenant, error) {
	tenant, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tenant.Status == models.TenantStatusSuspended {
		return nil, appErrors.Clone(appErrors.ErrConflict, "organisation is already suspended")
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, models.TenantStatusSuspended, &now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to suspend organisation")
	}

	s.recordAudit(ctx, actorID, models.AuditActionTenantSuspend, id)
	return s.Get(ctx, id)
}

// Reactivate lifts a suspension.
func (s *TenantService) Reactivate(ctx context.Context, actorID, id string) (*models.Tenant, error) {
	tenant, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tenant.Status == models.TenantStatusActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "organisation is already active")
	}

	if err := s.repo.UpdateStatus(ctx, id, models.TenantStatusActive, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reactivate organisation")
	}

	s.recordAudit(ctx, actorID, models.AuditActionTenantReactivate, id)
	return s.Get(ctx, id)
}

// Slugify lowercases a name and collapses runs of non-alphanumerics to
// single hyphens.
func Slugify(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

func (s *TenantService) recordAudit(ctx context.Context, actorID, action, resourceID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "tenant",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("failed to record tenant audit log", zap.Error(err))
	}
}
