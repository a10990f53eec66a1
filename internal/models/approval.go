package models

import "time"

// ApprovalStatus tracks a registration review.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Approval is an admin review request created for every self-service
// registration. Decisions are final.
type Approval struct {
	ID            string         `db:"id" json:"id"`
	TenantID      string         `db:"tenant_id" json:"tenant_id"`
	UserID        string         `db:"user_id" json:"user_id"`
	RequestedRole UserRole       `db:"requested_role" json:"requested_role"`
	Status        ApprovalStatus `db:"status" json:"status"`
	Reason        *string        `db:"reason" json:"reason,omitempty"`
	ReviewedBy    *string        `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time     `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// ApprovalDetail enriches an approval with applicant fields for listings.
type ApprovalDetail struct {
	Approval
	Email    string `db:"email" json:"email"`
	FullName string `db:"full_name" json:"full_name"`
}

// ApprovalFilter captures list criteria for approvals.
type ApprovalFilter struct {
	TenantID  string
	Status    *ApprovalStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
