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

type attendanceRepository interface {
	FindBySessionAndMember(ctx context.Context, sessionID, memberID string) (*models.AttendanceRecord, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	BulkUpsert(ctx context.Context, records []*models.AttendanceRecord, mode models.BulkOperationMode) ([]models.AttendanceBulkConflict, error)
	History(ctx context.Context, memberID string, from, to *time.Time, limit int) ([]models.AttendanceHistoryRow, error)
	Summary(ctx context.Context, memberID string, from, to *time.Time) (*models.AttendanceSummary, error)
}

type attendanceSessionRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.AttendanceSession, error)
}

type attendanceMemberRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.MemberDetail, error)
}

// MarkRequest records one member's attendance in a session.
type MarkRequest struct {
	MemberID string                  `json:"member_id" validate:"required"`
	Status   models.AttendanceStatus `json:"status" validate:"required,attendance_status"`
	Notes    *string                 `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// BulkMarkRequest records many members at once.
type BulkMarkRequest struct {
	Mode  models.BulkOperationMode `json:"mode" validate:"omitempty,bulk_mode"`
	Marks []MarkRequest            `json:"marks" validate:"required,min=1,dive"`
}

// BulkMarkResult reports the outcome of a bulk write.
type BulkMarkResult struct {
	Written   int                             `json:"written"`
	Conflicts []models.AttendanceBulkConflict `json:"conflicts,omitempty"`
}

// RegisterAttendanceValidators adds the custom tags used by attendance
// payloads to a validator instance.
func RegisterAttendanceValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(fl.Field().String()).Valid()
	}); err != nil {
		return err
	}
	return v.RegisterValidation("bulk_mode", func(fl validator.FieldLevel) bool {
		switch models.BulkOperationMode(fl.Field().String()) {
		case models.BulkModeAtomic, models.BulkModePartialOnError:
			return true
		}
		return false
	})
}

// AttendanceService writes and reads attendance marks. Writes are only
// accepted while the target session is open.
type AttendanceService struct {
	repo       attendanceRepository
	sessions   attendanceSessionRepository
	members    attendanceMemberRepository
	dashboards dashboardInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
	bulkMax    int
}

// NewAttendanceService constructs an AttendanceService instance.
func NewAttendanceService(repo attendanceRepository, sessions attendanceSessionRepository, members attendanceMemberRepository, dashboards dashboardInvalidator, validate *validator.Validate, logger *zap.Logger, bulkMax int) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if bulkMax <= 0 {
		bulkMax = 200
	}
	return &AttendanceService{repo: repo, sessions: sessions, members: members, dashboards: dashboards, validator: validate, logger: logger, bulkMax: bulkMax}
}

// Mark upserts a single attendance record. Re-marking while the session is
// open overwrites the earlier mark.
func (s *AttendanceService) Mark(ctx context.Context, tenantID, sessionID, actorID string, req MarkRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mark payload")
	}

	session, err := s.openSession(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.members.FindByID(ctx, tenantID, req.MemberID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load member")
	}

	record := &models.AttendanceRecord{
		SessionID: session.ID,
		MemberID:  req.MemberID,
		Status:    req.Status,
		Notes:     req.Notes,
		MarkedBy:  actorID,
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write mark")
	}
	s.invalidateDashboards(ctx, tenantID)
	return record, nil
}

// BulkMark writes a batch of marks in one shot. Atomic mode rejects the
// whole batch on the first bad row; partial mode reports per-row conflicts.
func (s *AttendanceService) BulkMark(ctx context.Context, tenantID, sessionID, actorID string, req BulkMarkRequest) (*BulkMarkResult, error) {
	if req.Mode == "" {
		req.Mode = models.BulkModeAtomic
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk mark payload")
	}
	if len(req.Marks) > s.bulkMax {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("bulk mark exceeds %d items", s.bulkMax))
	}

	session, err := s.openSession(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(req.Marks))
	records := make([]*models.AttendanceRecord, 0, len(req.Marks))
	for _, mark := range req.Marks {
		if seen[mark.MemberID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("member %s appears more than once", mark.MemberID))
		}
		seen[mark.MemberID] = true
		records = append(records, &models.AttendanceRecord{
			SessionID: session.ID,
			MemberID:  mark.MemberID,
			Status:    mark.Status,
			Notes:     mark.Notes,
			MarkedBy:  actorID,
		})
	}

	conflicts, err := s.repo.BulkUpsert(ctx, records, req.Mode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write bulk marks")
	}
	s.invalidateDashboards(ctx, tenantID)

	return &BulkMarkResult{
		Written:   len(records) - len(conflicts),
		Conflicts: conflicts,
	}, nil
}

// SessionRecords lists all marks recorded in a session.
func (s *AttendanceService) SessionRecords(ctx context.Context, tenantID, sessionID string) ([]models.AttendanceRecord, error) {
	if _, err := s.sessions.FindByID(ctx, tenantID, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	records, err := s.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list marks")
	}
	return records, nil
}

// History returns a member's marks across sessions.
func (s *AttendanceService) History(ctx context.Context, tenantID, memberID string, from, to *time.Time, limit int) ([]models.AttendanceHistoryRow, error) {
	if err := s.checkMember(ctx, tenantID, memberID); err != nil {
		return nil, err
	}
	rows, err := s.repo.History(ctx, memberID, from, to, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}
	return rows, nil
}

// Summary aggregates a member's attendance over a period.
func (s *AttendanceService) Summary(ctx context.Context, tenantID, memberID string, from, to *time.Time) (*models.AttendanceSummary, error) {
	if err := s.checkMember(ctx, tenantID, memberID); err != nil {
		return nil, err
	}
	summary, err := s.repo.Summary(ctx, memberID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute summary")
	}
	return summary, nil
}

func (s *AttendanceService) openSession(ctx context.Context, tenantID, sessionID string) (*models.AttendanceSession, error) {
	session, err := s.sessions.FindByID(ctx, tenantID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.State != models.SessionStateOpen {
		return nil, appErrors.Clone(appErrors.ErrSessionFinalized, fmt.Sprintf("session is %s", session.State))
	}
	return session, nil
}

func (s *AttendanceService) invalidateDashboards(ctx context.Context, tenantID string) {
	if s.dashboards != nil {
		s.dashboards.InvalidateTenant(ctx, tenantID)
	}
}

func (s *AttendanceService) checkMember(ctx context.Context, tenantID, memberID string) error {
	if _, err := s.members.FindByID(ctx, tenantID, memberID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "member not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load member")
	}
	return nil
}
