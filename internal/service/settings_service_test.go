package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartattend/smartattend-api/internal/models"
	appErrors "github.com/smartattend/smartattend-api/pkg/errors"
)

type mockSettingsRepo struct {
	tenant   map[string]models.TenantSetting
	platform map[string]models.PlatformSetting
}

func (m *mockSettingsRepo) ListTenant(ctx context.Context, tenantID string) ([]models.TenantSetting, error) {
	var out []models.TenantSetting
	for _, s := range m.tenant {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockSettingsRepo) GetTenant(ctx context.Context, tenantID, key string) (*models.TenantSetting, error) {
	s, ok := m.tenant[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m *mockSettingsRepo) UpsertTenant(ctx context.Context, setting *models.TenantSetting) error {
	if m.tenant == nil {
		m.tenant = make(map[string]models.TenantSetting)
	}
	m.tenant[setting.Key] = *setting
	return nil
}

func (m *mockSettingsRepo) ListPlatform(ctx context.Context) ([]models.PlatformSetting, error) {
	var out []models.PlatformSetting
	for _, s := range m.platform {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockSettingsRepo) GetPlatform(ctx context.Context, key string) (*models.PlatformSetting, error) {
	s, ok := m.platform[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m *mockSettingsRepo) UpsertPlatform(ctx context.Context, setting *models.PlatformSetting) error {
	if m.platform == nil {
		m.platform = make(map[string]models.PlatformSetting)
	}
	m.platform[setting.Key] = *setting
	return nil
}

func TestSettingsServiceListTenantMergesDefaults(t *testing.T) {
	repo := &mockSettingsRepo{tenant: map[string]models.TenantSetting{
		models.SettingWorkdayStart: {TenantID: "t1", Key: models.SettingWorkdayStart, Value: "09:00"},
	}}
	svc := NewSettingsService(repo, &mockAuditSink{}, validator.New(), zap.NewNop())

	settings, err := svc.ListTenant(context.Background(), "t1")
	require.NoError(t, err)

	byKey := make(map[string]string, len(settings))
	for _, s := range settings {
		byKey[s.Key] = s.Value
	}
	assert.Equal(t, "09:00", byKey[models.SettingWorkdayStart])
	assert.Equal(t, "17:00", byKey[models.SettingWorkdayEnd])
	assert.Equal(t, "15", byKey[models.SettingLateThresholdMin])
	assert.Equal(t, "false", byKey[models.SettingAutoCloseOnLock])
}

func TestSettingsServiceUpdateTenant(t *testing.T) {
	repo := &mockSettingsRepo{}
	audit := &mockAuditSink{}
	svc := NewSettingsService(repo, audit, validator.New(), zap.NewNop())

	_, err := svc.UpdateTenant(context.Background(), "t1", "admin", UpdateSettingsRequest{Settings: map[string]string{
		models.SettingLateThresholdMin: "30",
	}})
	require.NoError(t, err)
	assert.Equal(t, "30", repo.tenant[models.SettingLateThresholdMin].Value)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionSettingsUpdate, audit.logs[0].Action)
}

func TestSettingsServiceUpdateTenantRejectsBadValues(t *testing.T) {
	svc := NewSettingsService(&mockSettingsRepo{}, &mockAuditSink{}, validator.New(), zap.NewNop())

	cases := map[string]map[string]string{
		"bad time":          {models.SettingWorkdayStart: "9am"},
		"threshold too big": {models.SettingLateThresholdMin: "500"},
		"not a bool":        {models.SettingAutoCloseOnLock: "maybe"},
		"unknown key":       {"favourite_colour": "blue"},
	}
	for name, settings := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.UpdateTenant(context.Background(), "t1", "admin", UpdateSettingsRequest{Settings: settings})
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestSettingsServiceLateThresholdDefault(t *testing.T) {
	svc := NewSettingsService(&mockSettingsRepo{}, &mockAuditSink{}, validator.New(), zap.NewNop())

	threshold, err := svc.LateThreshold(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 15, threshold)
}

func TestSettingsServiceAutoCloseOnLock(t *testing.T) {
	repo := &mockSettingsRepo{tenant: map[string]models.TenantSetting{
		models.SettingAutoCloseOnLock: {TenantID: "t1", Key: models.SettingAutoCloseOnLock, Value: "true"},
	}}
	svc := NewSettingsService(repo, &mockAuditSink{}, validator.New(), zap.NewNop())

	enabled, err := svc.AutoCloseOnLock(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestSettingsServiceAutoCloseOnLockDefault(t *testing.T) {
	svc := NewSettingsService(&mockSettingsRepo{}, &mockAuditSink{}, validator.New(), zap.NewNop())

	enabled, err := svc.AutoCloseOnLock(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestSettingsServiceUpdatePlatformRejectsUnknownKey(t *testing.T) {
	svc := NewSettingsService(&mockSettingsRepo{}, &mockAuditSink{}, validator.New(), zap.NewNop())

	_, err := svc.UpdatePlatform(context.Background(), "root", UpdateSettingsRequest{Settings: map[string]string{
		"theme": "dark",
	}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSettingsServiceRegistrationOpenDefault(t *testing.T) {
	svc := NewSettingsService(&mockSettingsRepo{}, &mockAuditSink{}, validator.New(), zap.NewNop())

	open, err := svc.RegistrationOpen(context.Background())
	require.NoError(t, err)
	assert.True(t, open)
}
