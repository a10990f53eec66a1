package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartattend/smartattend-api/internal/models"
	appErrors "github.com/smartattend/smartattend-api/pkg/errors"
)

type mockTenantRepo struct {
	tenants map[string]*models.Tenant
	bySlug  map[string]*models.Tenant
	created *models.Tenant
}

func (m *mockTenantRepo) FindByID(ctx context.Context, id string) (*models.Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return t, nil
}

func (m *mockTenantRepo) FindBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	t, ok := m.bySlug[slug]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return t, nil
}

func (m *mockTenantRepo) List(ctx context.Context, filter models.TenantFilter) ([]models.Tenant, int, error) {
	var out []models.Tenant
	for _, t := range m.tenants {
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (m *mockTenantRepo) Create(ctx context.Context, tenant *models.Tenant) error {
	tenant.ID = "t-new"
	m.created = tenant
	if m.tenants == nil {
		m.tenants = make(map[string]*models.Tenant)
	}
	m.tenants[tenant.ID] = tenant
	return nil
}

func (m *mockTenantRepo) Update(ctx context.Context, tenant *models.Tenant) error {
	m.tenants[tenant.ID] = tenant
	return nil
}

func (m *mockTenantRepo) UpdateStatus(ctx context.Context, id string, status models.TenantStatus, suspendedAt *time.Time) error {
	if t, ok := m.tenants[id]; ok {
		t.Status = status
		t.SuspendedAt = suspendedAt
	}
	return nil
}

func TestTenantServiceCreateDerivesSlug(t *testing.T) {
	repo := &mockTenantRepo{}
	audit := &mockAuditSink{}
	svc := NewTenantService(repo, audit, validator.New(), zap.NewNop())

	tenant, err := svc.Create(context.Background(), "admin", CreateTenantRequest{
		Name:         "Nordic Ridge Academy",
		Type:         models.TenantTypeSchool,
		ContactEmail: "office@nordicridge.example",
	})
	require.NoError(t, err)
	assert.Equal(t, "nordic-ridge-academy", tenant.Slug)
	assert.Equal(t, models.TenantStatusActive, tenant.Status)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionTenantCreate, audit.logs[0].Action)
}

func TestTenantServiceCreateSlugTaken(t *testing.T) {
	repo := &mockTenantRepo{bySlug: map[string]*models.Tenant{
		"acme": {ID: "t1", Slug: "acme"},
	}}
	svc := NewTenantService(repo, &mockAuditSink{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), "admin", CreateTenantRequest{
		Name:         "Acme",
		Slug:         "acme",
		Type:         models.TenantTypeCorporate,
		ContactEmail: "hr@acme.example",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTenantServiceSuspend(t *testing.T) {
	repo := &mockTenantRepo{tenants: map[string]*models.Tenant{
		"t1": {ID: "t1", Status: models.TenantStatusActive},
	}}
	svc := NewTenantService(repo, &mockAuditSink{}, validator.New(), zap.NewNop())

	tenant, err := svc.Suspend(context.Background(), "admin", "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TenantStatusSuspended, tenant.Status)
	require.NotNil(t, tenant.SuspendedAt)
}

func TestTenantServiceSuspendTwice(t *testing.T) {
	repo := &mockTenantRepo{tenants: map[string]*models.Tenant{
		"t1": {ID: "t1", Status: models.TenantStatusSuspended},
	}}
	svc := NewTenantService(repo, &mockAuditSink{}, validator.New(), zap.NewNop())

	_, err := svc.Suspend(context.Background(), "admin", "t1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTenantServiceReactivate(t *testing.T) {
	suspendedAt := time.Now().UTC()
	repo := &mockTenantRepo{tenants: map[string]*models.Tenant{
		"t1": {ID: "t1", Status: models.TenantStatusSuspended, SuspendedAt: &suspendedAt},
	}}
	svc := NewTenantService(repo, &mockAuditSink{}, validator.New(), zap.NewNop())

	tenant, err := svc.Reactivate(context.Background(), "admin", "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TenantStatusActive, tenant.Status)
	assert.Nil(t, tenant.SuspendedAt)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "nordic-ridge-academy", Slugify("Nordic Ridge Academy"))
	assert.Equal(t, "acme-co", Slugify("  Acme & Co!  "))
	assert.Equal(t, "a1-b2", Slugify("A1_B2"))
}
