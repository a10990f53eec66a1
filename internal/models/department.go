package models

import "time"

// Department groups members inside a tenant (a school class level or a
// corporate unit). Code is unique per tenant.
type Department struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	HeadID    *string   `db:"head_id" json:"head_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DepartmentFilter captures list criteria for departments.
type DepartmentFilter struct {
	TenantID  string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
