package models

import "time"

// MemberKind distinguishes roster entries by tenant flavour.
type MemberKind string

const (
	MemberKindStudent  MemberKind = "student"
	MemberKindEmployee MemberKind = "employee"
)

// Member is a roster entry joining a user to a tenant: a student in a
// school or an employee in a company. Code carries the student number or
// employee code and is unique per tenant.
type Member struct {
	ID           string     `db:"id" json:"id"`
	TenantID     string     `db:"tenant_id" json:"tenant_id"`
	UserID       string     `db:"user_id" json:"user_id"`
	DepartmentID *string    `db:"department_id" json:"department_id,omitempty"`
	Kind         MemberKind `db:"kind" json:"kind"`
	Code         string     `db:"code" json:"code"`
	Position     *string    `db:"position" json:"position,omitempty"`
	JoinedAt     time.Time  `db:"joined_at" json:"joined_at"`
	Active       bool       `db:"active" json:"active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// MemberDetail enriches a member with joined user fields for listings.
type MemberDetail struct {
	Member
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
}

// MemberFilter captures list criteria for roster listings.
type MemberFilter struct {
	TenantID     string
	DepartmentID string
	Kind         *MemberKind
	Active       *bool
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
