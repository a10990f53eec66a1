package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin     UserRole = "SUPERADMIN"
	RoleSchoolAdmin    UserRole = "SCHOOL_ADMIN"
	RoleCorporateAdmin UserRole = "CORPORATE_ADMIN"
	RoleHR             UserRole = "HR"
	RoleFaculty        UserRole = "FACULTY"
	RoleEmployee       UserRole = "EMPLOYEE"
	RoleStudent        UserRole = "STUDENT"
)

// TenantAdmin reports whether the role administers a tenant.
func (r UserRole) TenantAdmin() bool {
	return r == RoleSchoolAdmin || r == RoleCorporateAdmin
}

// UserStatus models the account lifecycle driven by the approval workflow.
type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusRejected UserStatus = "rejected"
)

// User represents an application user stored in the users table.
// TenantID is nil only for platform superadmins.
type User struct {
	ID           string     `db:"id" json:"id"`
	TenantID     *string    `db:"tenant_id" json:"tenant_id,omitempty"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Status       UserStatus `db:"status" json:"status"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	TenantID  string
	Role      *UserRole
	Status    *UserStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
