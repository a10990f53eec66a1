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

type incidentRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Incident, error)
	List(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, int, error)
	Create(ctx context.Context, incident *models.Incident) error
	Update(ctx context.Context, incident *models.Incident) error
	CreateEvent(ctx context.Context, event *models.IncidentEvent) error
	ListEvents(ctx context.Context, incidentID string) ([]models.IncidentEvent, error)
}

// CreateIncidentRequest reports a new incident.
type CreateIncidentRequest struct {
	Title       string                  `json:"title" validate:"required,min=3,max=200"`
	Description string                  `json:"description" validate:"required,min=3"`
	Severity    models.IncidentSeverity `json:"severity" validate:"required,oneof=low medium high critical"`
	AssignedTo  *string                 `json:"assigned_to,omitempty"`
}

// UpdateIncidentRequest updates incident fields and optionally moves its
// status, appending a timeline event.
type UpdateIncidentRequest struct {
	Title       *string                  `json:"title,omitempty" validate:"omitempty,min=3,max=200"`
	Description *string                  `json:"description,omitempty" validate:"omitempty,min=3"`
	Severity    *models.IncidentSeverity `json:"severity,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Status      *models.IncidentStatus   `json:"status,omitempty" validate:"omitempty,oneof=open investigating resolved closed"`
	AssignedTo  *string                  `json:"assigned_to,omitempty"`
	Note        string                   `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// IncidentService tracks operational incidents with an append-only timeline.
type IncidentService struct {
	repo      incidentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewIncidentService constructs an IncidentService instance.
func NewIncidentService(repo incidentRepository, validate *validator.Validate, logger *zap.Logger) *IncidentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &IncidentService{repo: repo, validator: validate, logger: logger}
}

// Get returns an incident within the tenant.
func (s *IncidentService) Get(ctx context.Context, tenantID, id string) (*models.Incident, error) {
	incident, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "incident not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load incident")
	}
	return incident, nil
}

// List returns incidents matching the filter.
func (s *IncidentService) List(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, *models.Pagination, error) {
	incidents, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list incidents")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return incidents, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Create reports an incident in the open state. tenantID may be empty for
// platform-level incidents.
func (s *IncidentService) Create(ctx context.Context, tenantID, reporterID string, req CreateIncidentRequest) (*models.Incident, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create incident payload")
	}

	incident := &models.Incident{
		Title:       req.Title,
		Description: req.Description,
		Severity:    req.Severity,
		Status:      models.IncidentOpen,
		ReportedBy:  reporterID,
		AssignedTo:  req.AssignedTo,
	}
	if tenantID != "" {
		incident.TenantID = &tenantID
	}
	if err := s.repo.Create(ctx, incident); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create incident")
	}

	if err := s.repo.CreateEvent(ctx, &models.IncidentEvent{
		IncidentID: incident.ID,
		ActorID:    reporterID,
		ToStatus:   &incident.Status,
		Note:       "incident reported",
	}); err != nil {
		s.logger.Warn("failed to record incident event", zap.Error(err))
	}

	return incident, nil
}

// Update modifies an incident. Status changes must follow the resolution
// ladder forward (open, investigating, resolved, closed) and append a
// timeline event.
func (s *IncidentService) Update(ctx context.Context, tenantID, actorID, id string, req UpdateIncidentRequest) (*models.Incident, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update incident payload")
	}

	incident, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		incident.Title = *req.Title
	}
	if req.Description != nil {
		incident.Description = *req.Description
	}
	if req.Severity != nil {
		incident.Severity = *req.Severity
	}
	if req.AssignedTo != nil {
		incident.AssignedTo = req.AssignedTo
	}

	var fromStatus *models.IncidentStatus
	if req.Status != nil && *req.Status != incident.Status {
		if incidentRank(*req.Status) < incidentRank(incident.Status) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot move incident from %s back to %s", incident.Status, *req.Status))
		}
		prev := incident.Status
		fromStatus = &prev
		incident.Status = *req.Status
		if incident.Status == models.IncidentResolved || incident.Status == models.IncidentClosed {
			now := time.Now().UTC()
			incident.ResolvedAt = &now
		}
	}

	if err := s.repo.Update(ctx, incident); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update incident")
	}

	if fromStatus != nil || req.Note != "" {
		event := &models.IncidentEvent{
			IncidentID: incident.ID,
			ActorID:    actorID,
			FromStatus: fromStatus,
			Note:       req.Note,
		}
		if fromStatus != nil {
			event.ToStatus = &incident.Status
		}
		if err := s.repo.CreateEvent(ctx, event); err != nil {
			s.logger.Warn("failed to record incident event", zap.Error(err))
		}
	}

	return incident, nil
}

// Timeline returns the incident's events oldest first.
func (s *IncidentService) Timeline(ctx context.Context, tenantID, id string) ([]models.IncidentEvent, error) {
	if _, err := s.Get(ctx, tenantID, id); err != nil {
		return nil, err
	}
	events, err := s.repo.ListEvents(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timeline")
	}
	return events, nil
}

func incidentRank(status models.IncidentStatus) int {
	switch status {
	case models.IncidentOpen:
		return 0
	case models.IncidentInvestigating:
		return 1
	case models.IncidentResolved:
		return 2
	case models.IncidentClosed:
		return 3
	}
	return -1
}
