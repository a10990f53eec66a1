package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/smartattend/smartattend-api/internal/models"
)

const sessionColumns = `id, tenant_id, schedule_id, date, state, opened_by, opened_at, locked_by, locked_at, closed_by, closed_at, created_at, updated_at`

// ErrStateConflict is returned when a state transition matched no row,
// meaning the session was not in the expected source state.
var ErrStateConflict = fmt.Errorf("session state conflict")

// SessionRepository provides database access for attendance sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new instance of SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindByID returns a session scoped to a tenant.
func (r *SessionRepository) FindByID(ctx context.Context, tenantID, id string) (*models.AttendanceSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_sessions WHERE id = $1 AND tenant_id = $2 LIMIT 1`, sessionColumns)
	var session models.AttendanceSession
	if err := r.db.GetContext(ctx, &session, query, id, tenantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	return &session, nil
}

// FindActive returns the non-closed session for a schedule/date if one exists.
func (r *SessionRepository) FindActive(ctx context.Context, scheduleID string, date time.Time) (*models.AttendanceSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_sessions WHERE schedule_id = $1 AND date = $2 AND state != $3 LIMIT 1`, sessionColumns)
	var session models.AttendanceSession
	if err := r.db.GetContext(ctx, &session, query, scheduleID, date, models.SessionStateClosed); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active session: %w", err)
	}
	return &session, nil
}

// List returns sessions based on filters with total count.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.AttendanceSession, int, error) {
	baseQuery := `FROM attendance_sessions WHERE tenant_id = $1`
	args := []interface{}{filter.TenantID}

	if filter.ScheduleID != "" {
		baseQuery += fmt.Sprintf(" AND schedule_id = $%d", len(args)+1)
		args = append(args, filter.ScheduleID)
	}
	if filter.State != nil {
		baseQuery += fmt.Sprintf(" AND state = $%d", len(args)+1)
		args = append(args, *filter.State)
	}
	if filter.DateFrom != nil {
		baseQuery += fmt.Sprintf(" AND date >= $%d", len(args)+1)
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		baseQuery += fmt.Sprintf(" AND date <= $%d", len(args)+1)
		args = append(args, *filter.DateTo)
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"date": true, "opened_at": true, "state": true}
	if !allowedSorts[sortBy] {
		sortBy = "date"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", sessionColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var sessions []models.AttendanceSession
	if err := r.db.SelectContext(ctx, &sessions, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	return sessions, total, nil
}

// Create inserts a session in the open state.
func (r *SessionRepository) Create(ctx context.Context, session *models.AttendanceSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.OpenedAt.IsZero() {
		session.OpenedAt = now
	}
	session.UpdatedAt = now

	const query = `INSERT INTO attendance_sessions (id, tenant_id, schedule_id, date, state, opened_by, opened_at, created_at, updated_at) VALUES (:id, :tenant_id, :schedule_id, :date, :state, :opened_by, :opened_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Lock transitions an open session to locked. The WHERE clause carries the
// expected source state so concurrent transitions cannot race.
func (r *SessionRepository) Lock(ctx context.Context, tenantID, id, actorID string, at time.Time) error {
	const query = `UPDATE attendance_sessions SET state = $4, locked_by = $3, locked_at = $5, updated_at = $5 WHERE id = $1 AND tenant_id = $2 AND state = $6`
	return r.transition(ctx, query, id, tenantID, actorID, models.SessionStateLocked, at, models.SessionStateOpen)
}

// Close transitions a locked session to closed.
func (r *SessionRepository) Close(ctx context.Context, tenantID, id, actorID string, at time.Time) error {
	const query = `UPDATE attendance_sessions SET state = $4, closed_by = $3, closed_at = $5, updated_at = $5 WHERE id = $1 AND tenant_id = $2 AND state = $6`
	return r.transition(ctx, query, id, tenantID, actorID, models.SessionStateClosed, at, models.SessionStateLocked)
}

func (r *SessionRepository) transition(ctx context.Context, query, id, tenantID, actorID string, to models.SessionState, at time.Time, from models.SessionState) error {
	result, err := r.db.ExecContext(ctx, query, id, tenantID, actorID, to, at, from)
	if err != nil {
		return fmt.Errorf("transition session to %s: %w", to, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition session rows: %w", err)
	}
	if affected == 0 {
		return ErrStateConflict
	}
	return nil
}

// Roster returns the active members of the session's department with any
// marks recorded so far.
func (r *SessionRepository) Roster(ctx context.Context, sessionID string) ([]models.SessionRosterRow, error) {
	const query = `SELECT m.id AS member_id, u.full_name, m.code, ar.status, ar.marked_at
		FROM attendance_sessions s
		JOIN schedules sc ON sc.id = s.schedule_id
		JOIN members m ON m.department_id = sc.department_id AND m.active = TRUE
		JOIN users u ON u.id = m.user_id
		LEFT JOIN attendance_records ar ON ar.session_id = s.id AND ar.member_id = m.id
		WHERE s.id = $1
		ORDER BY u.full_name ASC`
	var rows []models.SessionRosterRow
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("session roster: %w", err)
	}
	return rows, nil
}
