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

type sessionRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.AttendanceSession, error)
	FindActive(ctx context.Context, scheduleID string, date time.Time) (*models.AttendanceSession, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.AttendanceSession, int, error)
	Create(ctx context.Context, session *models.AttendanceSession) error
	Lock(ctx context.Context, tenantID, id, actorID string, at time.Time) error
	Close(ctx context.Context, tenantID, id, actorID string, at time.Time) error
	Roster(ctx context.Context, sessionID string) ([]models.SessionRosterRow, error)
}

type sessionScheduleRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Schedule, error)
}

type sessionAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type sessionSettings interface {
	AutoCloseOnLock(ctx context.Context, tenantID string) (bool, error)
	LateThreshold(ctx context.Context, tenantID string) (int, error)
}

// OpenSessionRequest opens an attendance session for a schedule on a date.
type OpenSessionRequest struct {
	ScheduleID string `json:"schedule_id" validate:"required"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
}

// SessionService enforces the attendance session lifecycle. Sessions move
// strictly open to locked to closed; marks are only writable while open.
type SessionService struct {
	repo       sessionRepository
	schedules  sessionScheduleRepository
	audit      sessionAuditRepository
	settings   sessionSettings
	dashboards dashboardInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewSessionService constructs a SessionService instance.
func NewSessionService(repo sessionRepository, schedules sessionScheduleRepository, audit sessionAuditRepository, settings sessionSettings, dashboards dashboardInvalidator, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SessionService{repo: repo, schedules: schedules, audit: audit, settings: settings, dashboards: dashboards, validator: validate, logger: logger}
}

// Open creates a session in the open state. At most one non-closed session
// may exist per schedule and date.
func (s *SessionService) Open(ctx context.Context, tenantID, actorID string, req OpenSessionRequest) (*models.AttendanceSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid open session payload")
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}

	if _, err := s.schedules.FindByID(ctx, tenantID, req.ScheduleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	if existing, err := s.repo.FindActive(ctx, req.ScheduleID, date); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("session %s is already %s for this schedule and date", existing.ID, existing.State))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing session")
	}

	session := &models.AttendanceSession{
		TenantID:   tenantID,
		ScheduleID: req.ScheduleID,
		Date:       date,
		State:      models.SessionStateOpen,
		OpenedBy:   actorID,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open session")
	}

	s.recordAudit(ctx, actorID, models.AuditActionSessionOpen, session.ID)
	s.invalidateDashboards(ctx, tenantID)
	return session, nil
}

// Get returns a session by ID within the tenant.
func (s *SessionService) Get(ctx context.Context, tenantID, id string) (*models.AttendanceSession, error) {
	session, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// List returns sessions matching the filter.
func (s *SessionService) List(ctx context.Context, filter models.SessionFilter) ([]models.AttendanceSession, *models.Pagination, error) {
	sessions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return sessions, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Transition moves a session forward in its lifecycle, recording actor and
// timestamp. Backward or skipping transitions are rejected.
func (s *SessionService) Transition(ctx context.Context, tenantID, id, actorID string, target models.SessionState) (*models.AttendanceSession, error) {
	if !target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown session state")
	}

	session, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if !session.State.CanTransitionTo(target) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move session from %s to %s", session.State, target))
	}

	now := time.Now().UTC()
	switch target {
	case models.SessionStateLocked:
		err = s.repo.Lock(ctx, tenantID, id, actorID, now)
	case models.SessionStateClosed:
		err = s.repo.Close(ctx, tenantID, id, actorID, now)
	}
	if err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "session state changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition session")
	}

	action := models.AuditActionSessionLock
	if target == models.SessionStateClosed {
		action = models.AuditActionSessionClose
	}
	s.recordAudit(ctx, actorID, action, id)

	if target == models.SessionStateLocked {
		s.autoClose(ctx, tenantID, id, actorID)
	}
	s.invalidateDashboards(ctx, tenantID)

	return s.Get(ctx, tenantID, id)
}

// autoClose moves a freshly locked session straight to closed when the
// tenant has auto_close_on_lock enabled.
func (s *SessionService) autoClose(ctx context.Context, tenantID, id, actorID string) {
	if s.settings == nil {
		return
	}
	enabled, err := s.settings.AutoCloseOnLock(ctx, tenantID)
	if err != nil {
		s.logger.Warn("failed to load auto close setting", zap.String("session_id", id), zap.Error(err))
		return
	}
	if !enabled {
		return
	}
	if err := s.repo.Close(ctx, tenantID, id, actorID, time.Now().UTC()); err != nil {
		s.logger.Warn("auto close failed", zap.String("session_id", id), zap.Error(err))
		return
	}
	s.recordAudit(ctx, actorID, models.AuditActionSessionClose, id)
}

// Roster returns the session's member roster with any marks recorded so far,
// along with the tenant's late threshold in minutes so marking clients can
// flag late arrivals consistently.
func (s *SessionService) Roster(ctx context.Context, tenantID, id string) ([]models.SessionRosterRow, int, error) {
	if _, err := s.Get(ctx, tenantID, id); err != nil {
		return nil, 0, err
	}
	roster, err := s.repo.Roster(ctx, id)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	lateThreshold := 0
	if s.settings != nil {
		minutes, err := s.settings.LateThreshold(ctx, tenantID)
		if err != nil {
			s.logger.Warn("failed to load late threshold", zap.String("session_id", id), zap.Error(err))
		} else {
			lateThreshold = minutes
		}
	}
	return roster, lateThreshold, nil
}

func (s *SessionService) invalidateDashboards(ctx context.Context, tenantID string) {
	if s.dashboards != nil {
		s.dashboards.InvalidateTenant(ctx, tenantID)
	}
}

func (s *SessionService) recordAudit(ctx context.Context, actorID, action, resourceID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "attendance_session",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("failed to record session audit log", zap.Error(err))
	}
}
