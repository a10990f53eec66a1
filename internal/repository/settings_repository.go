package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/smartattend/smartattend-api/internal/models"
)

// SettingsRepository provides database access for tenant and platform
// settings.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository creates a new instance of SettingsRepository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// ListTenant returns all settings for a tenant.
func (r *SettingsRepository) ListTenant(ctx context.Context, tenantID string) ([]models.TenantSetting, error) {
	const query = `SELECT tenant_id, key, value, updated_by, updated_at FROM tenant_settings WHERE tenant_id = $1 ORDER BY key ASC`
	var settings []models.TenantSetting
	if err := r.db.SelectContext(ctx, &settings, query, tenantID); err != nil {
		return nil, fmt.Errorf("list tenant settings: %w", err)
	}
	return settings, nil
}

// GetTenant returns one tenant setting by key.
func (r *SettingsRepository) GetTenant(ctx context.Context, tenantID, key string) (*models.TenantSetting, error) {
	const query = `SELECT tenant_id, key, value, updated_by, updated_at FROM tenant_settings WHERE tenant_id = $1 AND key = $2 LIMIT 1`
	var setting models.TenantSetting
	if err := r.db.GetContext(ctx, &setting, query, tenantID, key); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get tenant setting: %w", err)
	}
	return &setting, nil
}

// UpsertTenant writes a tenant setting, replacing any existing value.
func (r *SettingsRepository) UpsertTenant(ctx context.Context, setting *models.TenantSetting) error {
	setting.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO tenant_settings (tenant_id, key, value, updated_by, updated_at)
		VALUES (:tenant_id, :key, :value, :updated_by, :updated_at)
		ON CONFLICT (tenant_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, setting); err != nil {
		return fmt.Errorf("upsert tenant setting: %w", err)
	}
	return nil
}

// ListPlatform returns all platform settings.
func (r *SettingsRepository) ListPlatform(ctx context.Context) ([]models.PlatformSetting, error) {
	const query = `SELECT key, value, updated_by, updated_at FROM platform_settings ORDER BY key ASC`
	var settings []models.PlatformSetting
	if err := r.db.SelectContext(ctx, &settings, query); err != nil {
		return nil, fmt.Errorf("list platform settings: %w", err)
	}
	return settings, nil
}

// GetPlatform returns one platform setting by key.
func (r *SettingsRepository) GetPlatform(ctx context.Context, key string) (*models.PlatformSetting, error) {
	const query = `SELECT key, value, updated_by, updated_at FROM platform_settings WHERE key = $1 LIMIT 1`
	var setting models.PlatformSetting
	if err := r.db.GetContext(ctx, &setting, query, key); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get platform setting: %w", err)
	}
	return &setting, nil
}

// UpsertPlatform writes a platform setting, replacing any existing value.
func (r *SettingsRepository) UpsertPlatform(ctx context.Context, setting *models.PlatformSetting) error {
	setting.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO platform_settings (key, value, updated_by, updated_at)
		VALUES (:key, :value, :updated_by, :updated_at)
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, setting); err != nil {
		return fmt.Errorf("upsert platform setting: %w", err)
	}
	return nil
}
