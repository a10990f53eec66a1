package models

import "time"

// Well-known tenant setting keys.
const (
	SettingWorkdayStart     = "workday_start"
	SettingWorkdayEnd       = "workday_end"
	SettingLateThresholdMin = "late_threshold_minutes"
	SettingAutoCloseOnLock  = "auto_close_sessions"
)

// Well-known platform setting keys.
const (
	PlatformSettingRegistrationOpen = "registration_open"
	PlatformSettingMaintenanceMode  = "maintenance_mode"
)

// TenantSetting is one key/value pair scoped to a tenant.
type TenantSetting struct {
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedBy string    `db:"updated_by" json:"updated_by"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PlatformSetting is a global key/value pair managed by the superadmin.
type PlatformSetting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedBy string    `db:"updated_by" json:"updated_by"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
