package models

import "time"

// TenantType distinguishes the two organisation flavours on the platform.
type TenantType string

const (
	TenantTypeSchool    TenantType = "school"
	TenantTypeCorporate TenantType = "corporate"
)

// Valid reports whether the tenant type is known.
func (t TenantType) Valid() bool {
	return t == TenantTypeSchool || t == TenantTypeCorporate
}

// TenantStatus models the tenant lifecycle controlled by the superadmin.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
)

// Tenant represents an isolated organisation (school or company).
type Tenant struct {
	ID           string       `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	Slug         string       `db:"slug" json:"slug"`
	Type         TenantType   `db:"type" json:"type"`
	Status       TenantStatus `db:"status" json:"status"`
	ContactEmail string       `db:"contact_email" json:"contact_email"`
	SuspendedAt  *time.Time   `db:"suspended_at" json:"suspended_at,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// TenantFilter captures filtering criteria for listing tenants.
type TenantFilter struct {
	Type      *TenantType
	Status    *TenantStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
