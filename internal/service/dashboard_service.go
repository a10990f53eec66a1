package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smartattend/smartattend-api/internal/models"
	appErrors "github.com/smartattend/smartattend-api/pkg/errors"
)

type dashboardRepository interface {
	AdminCounts(ctx context.Context, tenantID string, day time.Time) (*models.AdminDashboard, error)
	PlatformCounts(ctx context.Context) (*models.PlatformOverview, error)
}

type dashboardAttendanceRepository interface {
	Summary(ctx context.Context, memberID string, from, to *time.Time) (*models.AttendanceSummary, error)
	History(ctx context.Context, memberID string, from, to *time.Time, limit int) ([]models.AttendanceHistoryRow, error)
}

type dashboardMemberRepository interface {
	FindByUserID(ctx context.Context, tenantID, userID string) (*models.MemberDetail, error)
}

// dashboardInvalidator is what write-path services hold to drop cached
// dashboards after attendance, session, and approval mutations.
type dashboardInvalidator interface {
	InvalidateTenant(ctx context.Context, tenantID string)
}

// DashboardService aggregates counts for the landing views. Results are
// cached briefly since every page load hits them.
type DashboardService struct {
	repo       dashboardRepository
	attendance dashboardAttendanceRepository
	members    dashboardMemberRepository
	cache      *CacheService
	cacheTTL   time.Duration
	logger     *zap.Logger
}

func NewDashboardService(repo dashboardRepository, attendance dashboardAttendanceRepository, members dashboardMemberRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &DashboardService{
		repo:       repo,
		attendance: attendance,
		members:    members,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// Admin returns the tenant admin dashboard for today.
func (s *DashboardService) Admin(ctx context.Context, tenantID string) (*models.AdminDashboard, error) {
	cacheKey := fmt.Sprintf("dashboard:admin:%s", tenantID)
	if s.cache != nil {
		var cached models.AdminDashboard
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	dashboard, err := s.repo.AdminCounts(ctx, tenantID, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build dashboard")
	}
	dashboard.GeneratedAt = time.Now().UTC()

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, dashboard, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache dashboard", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return dashboard, nil
}

// Member returns the self-service view for the calling user. The window
// covers the last 30 days.
func (s *DashboardService) Member(ctx context.Context, tenantID, userID string) (*models.MemberDashboard, error) {
	member, err := s.members.FindByUserID(ctx, tenantID, userID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no member profile for this account")
	}

	cacheKey := fmt.Sprintf("dashboard:member:%s:%s", tenantID, member.ID)
	if s.cache != nil {
		var cached models.MemberDashboard
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)

	summary, err := s.attendance.Summary(ctx, member.ID, &from, &to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build attendance summary")
	}
	recent, err := s.attendance.History(ctx, member.ID, &from, &to, 10)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent attendance")
	}

	dashboard := &models.MemberDashboard{
		MemberID:    member.ID,
		Summary:     *summary,
		Recent:      recent,
		GeneratedAt: time.Now().UTC(),
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, dashboard, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache dashboard", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return dashboard, nil
}

// Platform returns the cross-tenant superadmin view.
func (s *DashboardService) Platform(ctx context.Context) (*models.PlatformOverview, error) {
	const cacheKey = "dashboard:platform"
	if s.cache != nil {
		var cached models.PlatformOverview
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	overview, err := s.repo.PlatformCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build platform overview")
	}
	overview.GeneratedAt = time.Now().UTC()

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, overview, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache dashboard", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return overview, nil
}

// InvalidateTenant drops the tenant's cached dashboards, the admin view and
// every member view alike. Write-path services call it after mutations that
// feed the dashboard counts.
func (s *DashboardService) InvalidateTenant(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	patterns := []string{
		fmt.Sprintf("dashboard:admin:%s", tenantID),
		fmt.Sprintf("dashboard:member:%s:*", tenantID),
	}
	for _, pattern := range patterns {
		if err := s.cache.Invalidate(ctx, pattern); err != nil {
			s.logger.Warn("dashboard cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}
