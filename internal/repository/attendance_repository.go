package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/smartattend/smartattend-api/internal/models"
)

const attendanceColumns = `id, session_id, member_id, status, notes, marked_by, marked_at, updated_at`

// AttendanceRepository provides database access for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new instance of AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// FindBySessionAndMember returns the existing mark for a member in a session.
func (r *AttendanceRepository) FindBySessionAndMember(ctx context.Context, sessionID, memberID string) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE session_id = $1 AND member_id = $2 LIMIT 1`, attendanceColumns)
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, sessionID, memberID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance record: %w", err)
	}
	return &record, nil
}

// ListBySession returns all marks in a session.
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE session_id = $1 ORDER BY marked_at ASC`, attendanceColumns)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, sessionID); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}

// Upsert writes a mark, replacing any earlier mark for the same
// session/member pair.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.MarkedAt.IsZero() {
		record.MarkedAt = now
	}
	record.UpdatedAt = now

	const query = `INSERT INTO attendance_records (id, session_id, member_id, status, notes, marked_by, marked_at, updated_at)
		VALUES (:id, :session_id, :member_id, :status, :notes, :marked_by, :marked_at, :updated_at)
		ON CONFLICT (session_id, member_id)
		DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert attendance record: %w", err)
	}
	return nil
}

// BulkUpsert writes a batch of marks in a single transaction. In atomic mode
// the first failure rolls back the whole batch; in partial mode failed rows
// are collected as conflicts and the rest commit.
func (r *AttendanceRepository) BulkUpsert(ctx context.Context, records []*models.AttendanceRecord, mode models.BulkOperationMode) ([]models.AttendanceBulkConflict, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk upsert: %w", err)
	}
	defer tx.Rollback()

	const query = `INSERT INTO attendance_records (id, session_id, member_id, status, notes, marked_by, marked_at, updated_at)
		VALUES (:id, :session_id, :member_id, :status, :notes, :marked_by, :marked_at, :updated_at)
		ON CONFLICT (session_id, member_id)
		DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	var conflicts []models.AttendanceBulkConflict
	for _, record := range records {
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		if record.MarkedAt.IsZero() {
			record.MarkedAt = now
		}
		record.UpdatedAt = now

		sp := fmt.Sprintf("sp_%s", record.ID[:8])
		if mode == models.BulkModePartialOnError {
			if _, err := tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
				return nil, fmt.Errorf("bulk upsert savepoint: %w", err)
			}
		}

		if _, err := tx.NamedExecContext(ctx, query, record); err != nil {
			if mode == models.BulkModeAtomic {
				return nil, fmt.Errorf("bulk upsert attendance: %w", err)
			}
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
				return nil, fmt.Errorf("bulk upsert rollback: %w", rbErr)
			}
			conflicts = append(conflicts, models.AttendanceBulkConflict{
				MemberID: record.MemberID,
				Reason:   err.Error(),
			})
			continue
		}

		if mode == models.BulkModePartialOnError {
			if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
				return nil, fmt.Errorf("bulk upsert release: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk upsert: %w", err)
	}
	return conflicts, nil
}

// History returns a member's marks across sessions, newest first.
func (r *AttendanceRepository) History(ctx context.Context, memberID string, from, to *time.Time, limit int) ([]models.AttendanceHistoryRow, error) {
	baseQuery := `FROM attendance_records ar
		JOIN attendance_sessions s ON s.id = ar.session_id
		JOIN schedules sc ON sc.id = s.schedule_id
		WHERE ar.member_id = $1`
	args := []interface{}{memberID}

	if from != nil {
		baseQuery += fmt.Sprintf(" AND s.date >= $%d", len(args)+1)
		args = append(args, *from)
	}
	if to != nil {
		baseQuery += fmt.Sprintf(" AND s.date <= $%d", len(args)+1)
		args = append(args, *to)
	}

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT ar.session_id, sc.name AS schedule_name, s.date, ar.status, ar.marked_at %s ORDER BY s.date DESC, ar.marked_at DESC LIMIT %d`, baseQuery, limit)

	var rows []models.AttendanceHistoryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("attendance history: %w", err)
	}
	return rows, nil
}

// Summary aggregates a member's marks over a period.
func (r *AttendanceRepository) Summary(ctx context.Context, memberID string, from, to *time.Time) (*models.AttendanceSummary, error) {
	baseQuery := `FROM attendance_records ar
		JOIN attendance_sessions s ON s.id = ar.session_id
		WHERE ar.member_id = $1`
	args := []interface{}{memberID}

	if from != nil {
		baseQuery += fmt.Sprintf(" AND s.date >= $%d", len(args)+1)
		args = append(args, *from)
	}
	if to != nil {
		baseQuery += fmt.Sprintf(" AND s.date <= $%d", len(args)+1)
		args = append(args, *to)
	}

	query := fmt.Sprintf(`SELECT $1 AS member_id,
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE ar.status = 'present') AS present,
		COUNT(*) FILTER (WHERE ar.status = 'late') AS late,
		COUNT(*) FILTER (WHERE ar.status = 'absent') AS absent,
		COUNT(*) FILTER (WHERE ar.status = 'excused') AS excused
		%s`, baseQuery)

	var summary models.AttendanceSummary
	if err := r.db.GetContext(ctx, &summary, query, args...); err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}
	summary.Percentage = summary.Rate()
	return &summary, nil
}

// DepartmentReport returns every mark for a department over a date range,
// ordered for export.
func (r *AttendanceRepository) DepartmentReport(ctx context.Context, tenantID, departmentID string, from, to time.Time) ([]models.DepartmentReportRow, error) {
	const query = `SELECT m.id AS member_id, u.full_name, m.code, s.date, ar.status
		FROM attendance_records ar
		JOIN attendance_sessions s ON s.id = ar.session_id
		JOIN members m ON m.id = ar.member_id
		JOIN users u ON u.id = m.user_id
		WHERE s.tenant_id = $1 AND m.department_id = $2 AND s.date BETWEEN $3 AND $4
		ORDER BY s.date ASC, u.full_name ASC`
	var rows []models.DepartmentReportRow
	if err := r.db.SelectContext(ctx, &rows, query, tenantID, departmentID, from, to); err != nil {
		return nil, fmt.Errorf("department report: %w", err)
	}
	return rows, nil
}
