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

func TestTenantFindBySlug(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTenantRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "slug", "type", "status", "contact_email", "suspended_at", "created_at", "updated_at"}).
		AddRow("t1", "Acme School", "acme", string(models.TenantTypeSchool), string(models.TenantStatusActive), "admin@acme.test", nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, slug, type, status, contact_email, suspended_at, created_at, updated_at FROM tenants WHERE slug = $1 LIMIT 1")).
		WithArgs("acme").
		WillReturnRows(rows)

	tenant, err := repo.FindBySlug(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, models.TenantTypeSchool, tenant.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTenantRepository(db)

	mock.ExpectExec("INSERT INTO tenants").WillReturnResult(sqlmock.NewResult(1, 1))

	tenant := &models.Tenant{Name: "Acme Corp", Slug: "acme-corp", Type: models.TenantTypeCorporate, Status: models.TenantStatusActive, ContactEmail: "ops@acme.test"}
	err := repo.Create(context.Background(), tenant)
	require.NoError(t, err)
	assert.NotEmpty(t, tenant.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantUpdateStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTenantRepository(db)

	suspendedAt := time.Now()
	mock.ExpectExec("UPDATE tenants SET status").
		WithArgs("t1", string(models.TenantStatusSuspended), suspendedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "t1", models.TenantStatusSuspended, &suspendedAt)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTenantRepository(db)

	now := time.Now()
	listRows := sqlmock.NewRows([]string{"id", "name", "slug", "type", "status", "contact_email", "suspended_at", "created_at", "updated_at"}).
		AddRow("t1", "Acme School", "acme", string(models.TenantTypeSchool), string(models.TenantStatusActive), "admin@acme.test", nil, now, now)
	mock.ExpectQuery("FROM tenants WHERE 1=1 ORDER BY created_at DESC").WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM tenants WHERE 1=1")).WillReturnRows(countRows)

	tenants, total, err := repo.List(context.Background(), models.TenantFilter{})
	require.NoError(t, err)
	assert.Len(t, tenants, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
