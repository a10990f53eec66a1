package models

import "time"

// Course is a taught subject (school) or a tracked activity (corporate).
type Course struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Schedule is a recurring class or work period during which attendance
// sessions are opened. CourseID is optional for corporate tenants.
type Schedule struct {
	ID           string    `db:"id" json:"id"`
	TenantID     string    `db:"tenant_id" json:"tenant_id"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	CourseID     *string   `db:"course_id" json:"course_id,omitempty"`
	Name         string    `db:"name" json:"name"`
	DayOfWeek    int       `db:"day_of_week" json:"day_of_week"`
	StartTime    string    `db:"start_time" json:"start_time"`
	EndTime      string    `db:"end_time" json:"end_time"`
	OwnerID      string    `db:"owner_id" json:"owner_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ScheduleFilter captures list criteria for schedules.
type ScheduleFilter struct {
	TenantID     string
	DepartmentID string
	OwnerID      string
	DayOfWeek    *int
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
