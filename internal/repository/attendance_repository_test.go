package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartattend/smartattend-api/internal/models"
)

func TestAttendanceUpsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec("INSERT INTO attendance_records").WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.AttendanceRecord{SessionID: "s1", MemberID: "m1", Status: models.AttendancePresent, MarkedBy: "u1"}
	err := repo.Upsert(context.Background(), record)
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceBulkUpsertAtomic(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance_records").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO attendance_records").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	records := []*models.AttendanceRecord{
		{SessionID: "s1", MemberID: "m1", Status: models.AttendancePresent, MarkedBy: "u1"},
		{SessionID: "s1", MemberID: "m2", Status: models.AttendanceLate, MarkedBy: "u1"},
	}
	conflicts, err := repo.BulkUpsert(context.Background(), records, models.BulkModeAtomic)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceBulkUpsertAtomicFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance_records").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	records := []*models.AttendanceRecord{
		{SessionID: "s1", MemberID: "m1", Status: models.AttendancePresent, MarkedBy: "u1"},
	}
	_, err := repo.BulkUpsert(context.Background(), records, models.BulkModeAtomic)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceBulkUpsertPartial(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT sp_").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO attendance_records").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("RELEASE SAVEPOINT sp_").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SAVEPOINT sp_").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO attendance_records").WillReturnError(assert.AnError)
	mock.ExpectExec("ROLLBACK TO SAVEPOINT sp_").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	records := []*models.AttendanceRecord{
		{SessionID: "s1", MemberID: "m1", Status: models.AttendancePresent, MarkedBy: "u1"},
		{SessionID: "s1", MemberID: "m2", Status: models.AttendanceAbsent, MarkedBy: "u1"},
	}
	conflicts, err := repo.BulkUpsert(context.Background(), records, models.BulkModePartialOnError)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "m2", conflicts[0].MemberID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceSummary(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"member_id", "total", "present", "late", "absent", "excused"}).
		AddRow("m1", 10, 7, 1, 1, 1)
	mock.ExpectQuery("FROM attendance_records ar").WithArgs("m1").WillReturnRows(rows)

	summary, err := repo.Summary(context.Background(), "m1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Total)
	assert.InDelta(t, 90.0, summary.Percentage, 0.01)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceHistory(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"session_id", "schedule_name", "date", "status", "marked_at"}).
		AddRow("s1", "Morning Shift", now, string(models.AttendanceLate), now)
	mock.ExpectQuery("FROM attendance_records ar").WithArgs("m1").WillReturnRows(rows)

	history, err := repo.History(context.Background(), "m1", nil, nil, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.AttendanceLate, history[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
