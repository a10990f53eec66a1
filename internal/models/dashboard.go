package models

import "time"

// AdminDashboard summarises a tenant for its admin/HR landing page.
type AdminDashboard struct {
	TenantID         string    `json:"tenant_id"`
	Headcount        int       `json:"headcount"`
	DepartmentCount  int       `json:"department_count"`
	TodaySessions    int       `json:"today_sessions"`
	TodayMarked      int       `json:"today_marked"`
	TodayPresent     int       `json:"today_present"`
	TodayRate        float64   `json:"today_rate"`
	PendingApprovals int       `json:"pending_approvals"`
	OpenIncidents    int       `json:"open_incidents"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// MemberDashboard is the student/employee self view.
type MemberDashboard struct {
	MemberID    string                 `json:"member_id"`
	Summary     AttendanceSummary      `json:"summary"`
	Recent      []AttendanceHistoryRow `json:"recent"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// PlatformOverview is the superadmin landing view across tenants.
type PlatformOverview struct {
	TenantCount      int       `json:"tenant_count"`
	SchoolCount      int       `json:"school_count"`
	CorporateCount   int       `json:"corporate_count"`
	SuspendedCount   int       `json:"suspended_count"`
	UserCount        int       `json:"user_count"`
	PendingApprovals int       `json:"pending_approvals"`
	OpenIncidents    int       `json:"open_incidents"`
	GeneratedAt      time.Time `json:"generated_at"`
}
