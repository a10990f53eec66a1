package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/smartattend/smartattend-api/internal/models"
	appErrors "github.com/smartattend/smartattend-api/pkg/errors"
)

type scheduleRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Schedule, error)
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	Update(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, tenantID, id string) error
}

type courseRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Course, error)
	List(ctx context.Context, tenantID, search string) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, tenantID, id string) error
}

type scheduleDepartmentRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Department, error)
}

// CreateScheduleRequest defines a recurring class or work period.
type CreateScheduleRequest struct {
	DepartmentID string  `json:"department_id" validate:"required"`
	CourseID     *string `json:"course_id,omitempty"`
	Name         string  `json:"name" validate:"required,min=2,max=120"`
	DayOfWeek    int     `json:"day_of_week" validate:"min=0,max=6"`
	StartTime    string  `json:"start_time" validate:"required,datetime=15:04"`
	EndTime      string  `json:"end_time" validate:"required,datetime=15:04"`
	OwnerID      string  `json:"owner_id" validate:"required"`
}

// UpdateScheduleRequest updates mutable schedule fields.
type UpdateScheduleRequest struct {
	Name      *string `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	DayOfWeek *int    `json:"day_of_week,omitempty" validate:"omitempty,min=0,max=6"`
	StartTime *string `json:"start_time,omitempty" validate:"omitempty,datetime=15:04"`
	EndTime   *string `json:"end_time,omitempty" validate:"omitempty,datetime=15:04"`
	OwnerID   *string `json:"owner_id,omitempty"`
}

// CourseRequest creates or updates a course.
type CourseRequest struct {
	Name string `json:"name" validate:"required,min=2,max=120"`
	Code string `json:"code" validate:"required,min=1,max=30"`
}

// ScheduleService manages courses and the recurring schedules attendance
// sessions are opened against.
type ScheduleService struct {
	repo        scheduleRepository
	courses     courseRepository
	departments scheduleDepartmentRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewScheduleService constructs a ScheduleService instance.
func NewScheduleService(repo scheduleRepository, courses courseRepository, departments scheduleDepartmentRepository, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ScheduleService{repo: repo, courses: courses, departments: departments, validator: validate, logger: logger}
}

// Get returns a schedule within the tenant.
func (s *ScheduleService) Get(ctx context.Context, tenantID, id string) (*models.Schedule, error) {
	schedule, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return schedule, nil
}

// List returns schedules matching the filter.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, *models.Pagination, error) {
	schedules, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return schedules, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Create defines a schedule. The department, and the course when given,
// must belong to the tenant and the period must end after it starts.
func (s *ScheduleService) Create(ctx context.Context, tenantID string, req CreateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create schedule payload")
	}
	if req.EndTime <= req.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}

	if _, err := s.departments.FindByID(ctx, tenantID, req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}

	if req.CourseID != nil {
		if _, err := s.courses.FindByID(ctx, tenantID, *req.CourseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
	}

	schedule := &models.Schedule{
		TenantID:     tenantID,
		DepartmentID: req.DepartmentID,
		CourseID:     req.CourseID,
		Name:         req.Name,
		DayOfWeek:    req.DayOfWeek,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		OwnerID:      req.OwnerID,
	}
	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}
	return schedule, nil
}

// Update applies partial updates to a schedule.
func (s *ScheduleService) Update(ctx context.Context, tenantID, id string, req UpdateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update schedule payload")
	}

	schedule, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		schedule.Name = *req.Name
	}
	if req.DayOfWeek != nil {
		schedule.DayOfWeek = *req.DayOfWeek
	}
	if req.StartTime != nil {
		schedule.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		schedule.EndTime = *req.EndTime
	}
	if req.OwnerID != nil {
		schedule.OwnerID = *req.OwnerID
	}
	if schedule.EndTime <= schedule.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}

	if err := s.repo.Update(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule")
	}
	return schedule, nil
}

// Delete removes a schedule.
func (s *ScheduleService) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := s.Get(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	return nil
}

// ListCourses returns the tenant's courses.
func (s *ScheduleService) ListCourses(ctx context.Context, tenantID, search string) ([]models.Course, error) {
	courses, err := s.courses.List(ctx, tenantID, search)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// CreateCourse adds a course to the tenant catalogue.
func (s *ScheduleService) CreateCourse(ctx context.Context, tenantID string, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course := &models.Course{TenantID: tenantID, Name: req.Name, Code: req.Code}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// UpdateCourse renames a course.
func (s *ScheduleService) UpdateCourse(ctx context.Context, tenantID, id string, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.courses.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	course.Name = req.Name
	course.Code = req.Code
	if err := s.courses.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// DeleteCourse removes a course from the catalogue.
func (s *ScheduleService) DeleteCourse(ctx context.Context, tenantID, id string) error {
	if _, err := s.courses.FindByID(ctx, tenantID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if err := s.courses.Delete(ctx, tenantID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	return nil
}
