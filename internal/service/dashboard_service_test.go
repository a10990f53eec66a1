package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartattend/smartattend-api/internal/models"
	appErrors "github.com/smartattend/smartattend-api/pkg/errors"
)

type memoryCacheRepo struct {
	entries map[string][]byte
	sets    int
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	m.sets++
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	for key := range m.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.entries, key)
		}
	}
	return nil
}

type mockDashboardRepo struct {
	admin       *models.AdminDashboard
	platform    *models.PlatformOverview
	err         error
	adminCalls  int
	lastTenant  string
	platformHit int
}

func (m *mockDashboardRepo) AdminCounts(_ context.Context, tenantID string, _ time.Time) (*models.AdminDashboard, error) {
	m.adminCalls++
	m.lastTenant = tenantID
	if m.err != nil {
		return nil, m.err
	}
	out := *m.admin
	return &out, nil
}

func (m *mockDashboardRepo) PlatformCounts(_ context.Context) (*models.PlatformOverview, error) {
	m.platformHit++
	if m.err != nil {
		return nil, m.err
	}
	out := *m.platform
	return &out, nil
}

type mockDashboardAttendance struct {
	summary *models.AttendanceSummary
	history []models.AttendanceHistoryRow
	err     error
}

func (m *mockDashboardAttendance) Summary(_ context.Context, _ string, _, _ *time.Time) (*models.AttendanceSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.summary, nil
}

func (m *mockDashboardAttendance) History(_ context.Context, _ string, _, _ *time.Time, _ int) ([]models.AttendanceHistoryRow, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.history, nil
}

type mockDashboardMembers struct {
	member *models.MemberDetail
	err    error
}

func (m *mockDashboardMembers) FindByUserID(_ context.Context, _, _ string) (*models.MemberDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.member, nil
}

func newDashboardCache() (*CacheService, *memoryCacheRepo) {
	repo := newMemoryCacheRepo()
	return NewCacheService(repo, nil, time.Minute, zap.NewNop(), true), repo
}

func TestDashboardServiceAdminCachesResult(t *testing.T) {
	repo := &mockDashboardRepo{admin: &models.AdminDashboard{TenantID: "t1", Headcount: 42, TodaySessions: 3}}
	cache, cacheRepo := newDashboardCache()
	svc := NewDashboardService(repo, &mockDashboardAttendance{}, &mockDashboardMembers{}, cache, time.Minute, zap.NewNop())

	first, err := svc.Admin(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 42, first.Headcount)
	assert.Equal(t, "t1", repo.lastTenant)
	assert.False(t, first.GeneratedAt.IsZero())
	assert.Equal(t, 1, cacheRepo.sets)

	second, err := svc.Admin(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 42, second.Headcount)
	assert.Equal(t, 1, repo.adminCalls, "second read should come from cache")
}

func TestDashboardServiceAdminKeysPerTenant(t *testing.T) {
	repo := &mockDashboardRepo{admin: &models.AdminDashboard{Headcount: 7}}
	cache, _ := newDashboardCache()
	svc := NewDashboardService(repo, &mockDashboardAttendance{}, &mockDashboardMembers{}, cache, time.Minute, zap.NewNop())

	_, err := svc.Admin(context.Background(), "t1")
	require.NoError(t, err)
	_, err = svc.Admin(context.Background(), "t2")
	require.NoError(t, err)

	assert.Equal(t, 2, repo.adminCalls)
	assert.Equal(t, "t2", repo.lastTenant)
}

func TestDashboardServiceAdminWorksWithoutCache(t *testing.T) {
	repo := &mockDashboardRepo{admin: &models.AdminDashboard{Headcount: 5}}
	svc := NewDashboardService(repo, &mockDashboardAttendance{}, &mockDashboardMembers{}, nil, time.Minute, zap.NewNop())

	dashboard, err := svc.Admin(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 5, dashboard.Headcount)
}

func TestDashboardServiceAdminWrapsRepoError(t *testing.T) {
	repo := &mockDashboardRepo{err: errors.New("boom")}
	svc := NewDashboardService(repo, &mockDashboardAttendance{}, &mockDashboardMembers{}, nil, time.Minute, zap.NewNop())

	_, err := svc.Admin(context.Background(), "t1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
}

func TestDashboardServiceMemberBuildsWindow(t *testing.T) {
	member := &models.MemberDetail{Member: models.Member{ID: "m1", TenantID: "t1", UserID: "u1"}, FullName: "Ada Lovelace"}
	attendance := &mockDashboardAttendance{
		summary: &models.AttendanceSummary{MemberID: "m1", Total: 20, Present: 18, Late: 1, Absent: 1},
		history: []models.AttendanceHistoryRow{{ScheduleName: "Morning Standup", Status: models.AttendancePresent}},
	}
	cache, _ := newDashboardCache()
	svc := NewDashboardService(&mockDashboardRepo{}, attendance, &mockDashboardMembers{member: member}, cache, time.Minute, zap.NewNop())

	dashboard, err := svc.Member(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "m1", dashboard.MemberID)
	assert.Equal(t, 20, dashboard.Summary.Total)
	require.Len(t, dashboard.Recent, 1)
	assert.Equal(t, "Morning Standup", dashboard.Recent[0].ScheduleName)
}

func TestDashboardServiceMemberWithoutProfile(t *testing.T) {
	svc := NewDashboardService(&mockDashboardRepo{}, &mockDashboardAttendance{}, &mockDashboardMembers{err: errors.New("no rows")}, nil, time.Minute, zap.NewNop())

	_, err := svc.Member(context.Background(), "t1", "u-ghost")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestDashboardServicePlatformCachesResult(t *testing.T) {
	repo := &mockDashboardRepo{platform: &models.PlatformOverview{TenantCount: 9, SchoolCount: 6}}
	cache, _ := newDashboardCache()
	svc := NewDashboardService(repo, &mockDashboardAttendance{}, &mockDashboardMembers{}, cache, time.Minute, zap.NewNop())

	first, err := svc.Platform(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, first.TenantCount)

	_, err = svc.Platform(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.platformHit)
}

func TestDashboardServiceInvalidateTenant(t *testing.T) {
	repo := &mockDashboardRepo{admin: &models.AdminDashboard{Headcount: 1}}
	member := &models.MemberDetail{Member: models.Member{ID: "m1", TenantID: "t1", UserID: "u1"}}
	attendance := &mockDashboardAttendance{summary: &models.AttendanceSummary{MemberID: "m1", Total: 3}}
	cache, cacheRepo := newDashboardCache()
	svc := NewDashboardService(repo, attendance, &mockDashboardMembers{member: member}, cache, time.Minute, zap.NewNop())

	_, err := svc.Admin(context.Background(), "t1")
	require.NoError(t, err)
	_, err = svc.Member(context.Background(), "t1", "u1")
	require.NoError(t, err)
	require.Len(t, cacheRepo.entries, 2)

	svc.InvalidateTenant(context.Background(), "t1")
	assert.Empty(t, cacheRepo.entries)
}

func TestDashboardServiceInvalidateTenantScopesKeys(t *testing.T) {
	repo := &mockDashboardRepo{admin: &models.AdminDashboard{Headcount: 1}}
	cache, cacheRepo := newDashboardCache()
	svc := NewDashboardService(repo, &mockDashboardAttendance{}, &mockDashboardMembers{}, cache, time.Minute, zap.NewNop())

	_, err := svc.Admin(context.Background(), "t1")
	require.NoError(t, err)
	_, err = svc.Admin(context.Background(), "t2")
	require.NoError(t, err)

	svc.InvalidateTenant(context.Background(), "t1")
	require.Len(t, cacheRepo.entries, 1)
	assert.Contains(t, cacheRepo.entries, "dashboard:admin:t2")
}
