package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartattend/smartattend-api/internal/models"
)

func TestApprovalCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	mock.ExpectExec("INSERT INTO approvals").WillReturnResult(sqlmock.NewResult(1, 1))

	approval := &models.Approval{TenantID: "t1", UserID: "u1", RequestedRole: models.RoleStudent}
	err := repo.Create(context.Background(), approval)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, approval.Status)
	assert.NotEmpty(t, approval.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "tenant_id", "user_id", "requested_role", "status", "reason", "reviewed_by", "reviewed_at", "created_at", "email", "full_name"}).
		AddRow("a1", "t1", "u1", string(models.RoleStudent), string(models.ApprovalPending), nil, nil, nil, now, "u@example.com", "U")
	mock.ExpectQuery("FROM approvals a JOIN users u").WithArgs("t1").WillReturnRows(rows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM approvals a JOIN users u")).WithArgs("t1").WillReturnRows(countRows)

	approvals, total, err := repo.List(context.Background(), models.ApprovalFilter{TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, "u@example.com", approvals[0].Email)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalDecide(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	mock.ExpectExec("UPDATE approvals SET status").
		WithArgs("a1", "t1", string(models.ApprovalApproved), "admin", sqlmock.AnyArg(), nil, string(models.ApprovalPending)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Decide(context.Background(), "t1", "a1", models.ApprovalApproved, "admin", nil, time.Now())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalDecideAlreadyDecided(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	mock.ExpectExec("UPDATE approvals SET status").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Decide(context.Background(), "t1", "a1", models.ApprovalRejected, "admin", nil, time.Now())
	assert.ErrorIs(t, err, ErrStateConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
