package models

import "time"

// IncidentSeverity grades an incident.
type IncidentSeverity string

const (
	SeverityLow      IncidentSeverity = "low"
	SeverityMedium   IncidentSeverity = "medium"
	SeverityHigh     IncidentSeverity = "high"
	SeverityCritical IncidentSeverity = "critical"
)

// Valid reports whether the severity is known.
func (s IncidentSeverity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// IncidentStatus tracks resolution progress.
type IncidentStatus string

const (
	IncidentOpen          IncidentStatus = "open"
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentResolved      IncidentStatus = "resolved"
	IncidentClosed        IncidentStatus = "closed"
)

// Valid reports whether the status is known.
func (s IncidentStatus) Valid() bool {
	switch s {
	case IncidentOpen, IncidentInvestigating, IncidentResolved, IncidentClosed:
		return true
	}
	return false
}

// Incident is a reported operational or policy problem within a tenant.
// TenantID is nil for platform-level incidents raised by the superadmin.
type Incident struct {
	ID          string           `db:"id" json:"id"`
	TenantID    *string          `db:"tenant_id" json:"tenant_id,omitempty"`
	Title       string           `db:"title" json:"title"`
	Description string           `db:"description" json:"description"`
	Severity    IncidentSeverity `db:"severity" json:"severity"`
	Status      IncidentStatus   `db:"status" json:"status"`
	ReportedBy  string           `db:"reported_by" json:"reported_by"`
	AssignedTo  *string          `db:"assigned_to" json:"assigned_to,omitempty"`
	ResolvedAt  *time.Time       `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// IncidentEvent is an append-only timeline entry recorded on every status
// change or note.
type IncidentEvent struct {
	ID         string          `db:"id" json:"id"`
	IncidentID string          `db:"incident_id" json:"incident_id"`
	ActorID    string          `db:"actor_id" json:"actor_id"`
	FromStatus *IncidentStatus `db:"from_status" json:"from_status,omitempty"`
	ToStatus   *IncidentStatus `db:"to_status" json:"to_status,omitempty"`
	Note       string          `db:"note" json:"note"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// IncidentFilter captures list criteria for incidents.
type IncidentFilter struct {
	TenantID  string
	Severity  *IncidentSeverity
	Status    *IncidentStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
