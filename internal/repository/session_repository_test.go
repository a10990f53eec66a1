package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartattend/smartattend-api/internal/models"
)

func sessionRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "tenant_id", "schedule_id", "date", "state", "opened_by", "opened_at", "locked_by", "locked_at", "closed_by", "closed_at", "created_at", "updated_at"}).
		AddRow("s1", "t1", "sch1", now, string(models.SessionStateOpen), "u1", now, nil, nil, nil, nil, now, now)
}

func TestSessionFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, tenant_id, schedule_id, date, state, opened_by, opened_at, locked_by, locked_at, closed_by, closed_at, created_at, updated_at FROM attendance_sessions WHERE id = $1 AND tenant_id = $2 LIMIT 1")).
		WithArgs("s1", "t1").
		WillReturnRows(sessionRows(now))

	session, err := repo.FindByID(context.Background(), "t1", "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateOpen, session.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionFindActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_sessions WHERE schedule_id = $1 AND date = $2 AND state != $3")).
		WithArgs("sch1", date, string(models.SessionStateClosed)).
		WillReturnRows(sessionRows(now))

	session, err := repo.FindActive(context.Background(), "sch1", date)
	require.NoError(t, err)
	assert.Equal(t, "sch1", session.ScheduleID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionFindActiveNone(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery("FROM attendance_sessions").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActive(context.Background(), "sch1", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec("INSERT INTO attendance_sessions").WillReturnResult(sqlmock.NewResult(1, 1))

	session := &models.AttendanceSession{TenantID: "t1", ScheduleID: "sch1", Date: time.Now(), State: models.SessionStateOpen, OpenedBy: "u1"}
	err := repo.Create(context.Background(), session)
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.False(t, session.OpenedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionLock(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec("UPDATE attendance_sessions SET state").
		WithArgs("s1", "t1", "u1", string(models.SessionStateLocked), sqlmock.AnyArg(), string(models.SessionStateOpen)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Lock(context.Background(), "t1", "s1", "u1", time.Now())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionLockConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec("UPDATE attendance_sessions SET state").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Lock(context.Background(), "t1", "s1", "u1", time.Now())
	assert.ErrorIs(t, err, ErrStateConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionClose(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec("UPDATE attendance_sessions SET state").
		WithArgs("s1", "t1", "u1", string(models.SessionStateClosed), sqlmock.AnyArg(), string(models.SessionStateLocked)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Close(context.Background(), "t1", "s1", "u1", time.Now())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRoster(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"member_id", "full_name", "code", "status", "marked_at"}).
		AddRow("m1", "Alice", "STU-001", string(models.AttendancePresent), now).
		AddRow("m2", "Bob", "STU-002", nil, nil)
	mock.ExpectQuery("SELECT m.id AS member_id").WithArgs("s1").WillReturnRows(rows)

	roster, err := repo.Roster(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, models.AttendancePresent, *roster[0].Status)
	assert.Nil(t, roster[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
