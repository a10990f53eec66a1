package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/smartattend/smartattend-api/internal/models"
	appErrors "github.com/smartattend/smartattend-api/pkg/errors"
)

type settingsRepository interface {
	ListTenant(ctx context.Context, tenantID string) ([]models.TenantSetting, error)
	GetTenant(ctx context.Context, tenantID, key string) (*models.TenantSetting, error)
	UpsertTenant(ctx context.Context, setting *models.TenantSetting) error
	ListPlatform(ctx context.Context) ([]models.PlatformSetting, error)
	GetPlatform(ctx context.Context, key string) (*models.PlatformSetting, error)
	UpsertPlatform(ctx context.Context, setting *models.PlatformSetting) error
}

type settingsAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UpdateSettingsRequest carries key/value pairs to write.
type UpdateSettingsRequest struct {
	Settings map[string]string `json:"settings" validate:"required,min=1"`
}

// Defaults applied when a tenant has no stored value for a key.
var tenantSettingDefaults = map[string]string{
	models.SettingWorkdayStart:     "08:00",
	models.SettingWorkdayEnd:       "17:00",
	models.SettingLateThresholdMin: "15",
	models.SettingAutoCloseOnLock:  "false",
}

// SettingsService manages tenant-scoped and platform-wide settings.
type SettingsService struct {
	repo      settingsRepository
	audit     settingsAuditRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingsService constructs a SettingsService instance.
func NewSettingsService(repo settingsRepository, audit settingsAuditRepository, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SettingsService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// ListTenant returns the tenant's settings with defaults filled in for
// missing keys.
func (s *SettingsService) ListTenant(ctx context.Context, tenantID string) ([]models.TenantSetting, error) {
	stored, err := s.repo.ListTenant(ctx, tenantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list settings")
	}

	present := make(map[string]bool, len(stored))
	for _, setting := range stored {
		present[setting.Key] = true
	}
	for key, value := range tenantSettingDefaults {
		if !present[key] {
			stored = append(stored, models.TenantSetting{TenantID: tenantID, Key: key, Value: value})
		}
	}
	return stored, nil
}

// UpdateTenant writes tenant settings after validating known keys.
func (s *SettingsService) UpdateTenant(ctx context.Context, tenantID, actorID string, req UpdateSettingsRequest) ([]models.TenantSetting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settings payload")
	}

	for key, value := range req.Settings {
		if err := validateTenantSetting(key, value); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
	}

	for key, value := range req.Settings {
		setting := &models.TenantSetting{TenantID: tenantID, Key: key, Value: value, UpdatedBy: actorID}
		if err := s.repo.UpsertTenant(ctx, setting); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write setting")
		}
	}

	s.recordAudit(ctx, actorID, tenantID)
	return s.ListTenant(ctx, tenantID)
}

// LateThreshold returns the tenant's late threshold in minutes, falling
// back to the default.
func (s *SettingsService) LateThreshold(ctx context.Context, tenantID string) (int, error) {
	setting, err := s.repo.GetTenant(ctx, tenantID, models.SettingLateThresholdMin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mustAtoi(tenantSettingDefaults[models.SettingLateThresholdMin]), nil
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load setting")
	}
	minutes, err := strconv.Atoi(setting.Value)
	if err != nil {
		return mustAtoi(tenantSettingDefaults[models.SettingLateThresholdMin]), nil
	}
	return minutes, nil
}

// AutoCloseOnLock reports whether locking a session should also close it for
// the tenant, falling back to the default.
func (s *SettingsService) AutoCloseOnLock(ctx context.Context, tenantID string) (bool, error) {
	setting, err := s.repo.GetTenant(ctx, tenantID, models.SettingAutoCloseOnLock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load setting")
	}
	enabled, err := strconv.ParseBool(setting.Value)
	if err != nil {
		return false, nil
	}
	return enabled, nil
}

// ListPlatform returns all platform settings.
func (s *SettingsService) ListPlatform(ctx context.Context) ([]models.PlatformSetting, error) {
	settings, err := s.repo.ListPlatform(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list platform settings")
	}
	return settings, nil
}

// UpdatePlatform writes platform settings.
func (s *SettingsService) UpdatePlatform(ctx context.Context, actorID string, req UpdateSettingsRequest) ([]models.PlatformSetting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settings payload")
	}

	for key, value := range req.Settings {
		switch key {
		case models.PlatformSettingRegistrationOpen, models.PlatformSettingMaintenanceMode:
			if _, err := strconv.ParseBool(value); err != nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a boolean", key))
			}
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown platform setting %q", key))
		}
	}

	for key, value := range req.Settings {
		setting := &models.PlatformSetting{Key: key, Value: value, UpdatedBy: actorID}
		if err := s.repo.UpsertPlatform(ctx, setting); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write platform setting")
		}
	}

	s.recordAudit(ctx, actorID, "platform")
	return s.ListPlatform(ctx)
}

// MaintenanceMode reports whether the platform is in maintenance. Missing
// setting defaults to off.
func (s *SettingsService) MaintenanceMode(ctx context.Context) (bool, error) {
	setting, err := s.repo.GetPlatform(ctx, models.PlatformSettingMaintenanceMode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load platform setting")
	}
	enabled, err := strconv.ParseBool(setting.Value)
	if err != nil {
		return false, nil
	}
	return enabled, nil
}

// RegistrationOpen reports whether self-service signup is enabled. Missing
// setting defaults to open.
func (s *SettingsService) RegistrationOpen(ctx context.Context) (bool, error) {
	setting, err := s.repo.GetPlatform(ctx, models.PlatformSettingRegistrationOpen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return true, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load platform setting")
	}
	open, err := strconv.ParseBool(setting.Value)
	if err != nil {
		return true, nil
	}
	return open, nil
}

func validateTenantSetting(key, value string) error {
	switch key {
	case models.SettingWorkdayStart, models.SettingWorkdayEnd:
		if len(value) != 5 || value[2] != ':' {
			return fmt.Errorf("%s must be in HH:MM form", key)
		}
	case models.SettingLateThresholdMin:
		minutes, err := strconv.Atoi(value)
		if err != nil || minutes < 0 || minutes > 240 {
			return fmt.Errorf("%s must be a number of minutes between 0 and 240", key)
		}
	case models.SettingAutoCloseOnLock:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("%s must be a boolean", key)
		}
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

func mustAtoi(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}

func (s *SettingsService) recordAudit(ctx context.Context, actorID, resourceID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionSettingsUpdate,
		Resource:   "settings",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("failed to record settings audit log", zap.Error(err))
	}
}
