package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/smartattend/smartattend-api/internal/models"
)

// DashboardRepository runs the aggregate queries behind dashboard views.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository creates a new instance of DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// AdminCounts fills the tenant admin dashboard for the given day.
func (r *DashboardRepository) AdminCounts(ctx context.Context, tenantID string, day time.Time) (*models.AdminDashboard, error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM members WHERE tenant_id = $1 AND active = TRUE) AS headcount,
		(SELECT COUNT(*) FROM departments WHERE tenant_id = $1) AS department_count,
		(SELECT COUNT(*) FROM attendance_sessions WHERE tenant_id = $1 AND date = $2) AS today_sessions,
		(SELECT COUNT(*) FROM attendance_records ar JOIN attendance_sessions s ON s.id = ar.session_id WHERE s.tenant_id = $1 AND s.date = $2) AS today_marked,
		(SELECT COUNT(*) FROM attendance_records ar JOIN attendance_sessions s ON s.id = ar.session_id WHERE s.tenant_id = $1 AND s.date = $2 AND ar.status IN ('present', 'late', 'excused')) AS today_present,
		(SELECT COUNT(*) FROM approvals WHERE tenant_id = $1 AND status = 'pending') AS pending_approvals,
		(SELECT COUNT(*) FROM incidents WHERE tenant_id = $1 AND status IN ('open', 'investigating')) AS open_incidents`

	var dashboard models.AdminDashboard
	row := r.db.QueryRowxContext(ctx, query, tenantID, day)
	if err := row.Scan(
		&dashboard.Headcount,
		&dashboard.DepartmentCount,
		&dashboard.TodaySessions,
		&dashboard.TodayMarked,
		&dashboard.TodayPresent,
		&dashboard.PendingApprovals,
		&dashboard.OpenIncidents,
	); err != nil {
		return nil, fmt.Errorf("admin dashboard counts: %w", err)
	}

	dashboard.TenantID = tenantID
	if dashboard.TodayMarked > 0 {
		dashboard.TodayRate = float64(dashboard.TodayPresent) / float64(dashboard.TodayMarked) * 100
	}
	return &dashboard, nil
}

// PlatformCounts fills the superadmin overview.
func (r *DashboardRepository) PlatformCounts(ctx context.Context) (*models.PlatformOverview, error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM tenants) AS tenant_count,
		(SELECT COUNT(*) FROM tenants WHERE type = 'school') AS school_count,
		(SELECT COUNT(*) FROM tenants WHERE type = 'corporate') AS corporate_count,
		(SELECT COUNT(*) FROM tenants WHERE status = 'suspended') AS suspended_count,
		(SELECT COUNT(*) FROM users WHERE status != 'inactive') AS user_count,
		(SELECT COUNT(*) FROM approvals WHERE status = 'pending') AS pending_approvals,
		(SELECT COUNT(*) FROM incidents WHERE status IN ('open', 'investigating')) AS open_incidents`

	var overview models.PlatformOverview
	row := r.db.QueryRowxContext(ctx, query)
	if err := row.Scan(
		&overview.TenantCount,
		&overview.SchoolCount,
		&overview.CorporateCount,
		&overview.SuspendedCount,
		&overview.UserCount,
		&overview.PendingApprovals,
		&overview.OpenIncidents,
	); err != nil {
		return nil, fmt.Errorf("platform overview counts: %w", err)
	}
	return &overview, nil
}
