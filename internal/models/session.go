package models

import "time"

// SessionState is the lifecycle of an attendance session. Transitions are
// strictly forward: open → locked → closed. Attendance records can only be
// written while the session is open; locking freezes them for good.
type SessionState string

const (
	SessionStateOpen   SessionState = "open"
	SessionStateLocked SessionState = "locked"
	SessionStateClosed SessionState = "closed"
)

// Valid reports whether the state is known.
func (s SessionState) Valid() bool {
	switch s {
	case SessionStateOpen, SessionStateLocked, SessionStateClosed:
		return true
	}
	return false
}

// CanTransitionTo enforces the forward-only state machine.
func (s SessionState) CanTransitionTo(next SessionState) bool {
	switch s {
	case SessionStateOpen:
		return next == SessionStateLocked
	case SessionStateLocked:
		return next == SessionStateClosed
	}
	return false
}

// AttendanceSession is a persisted class/work period opened for a
// schedule on a specific date. At most one non-closed session may exist
// per schedule/date.
type AttendanceSession struct {
	ID         string       `db:"id" json:"id"`
	TenantID   string       `db:"tenant_id" json:"tenant_id"`
	ScheduleID string       `db:"schedule_id" json:"schedule_id"`
	Date       time.Time    `db:"date" json:"date"`
	State      SessionState `db:"state" json:"state"`
	OpenedBy   string       `db:"opened_by" json:"opened_by"`
	OpenedAt   time.Time    `db:"opened_at" json:"opened_at"`
	LockedBy   *string      `db:"locked_by" json:"locked_by,omitempty"`
	LockedAt   *time.Time   `db:"locked_at" json:"locked_at,omitempty"`
	ClosedBy   *string      `db:"closed_by" json:"closed_by,omitempty"`
	ClosedAt   *time.Time   `db:"closed_at" json:"closed_at,omitempty"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updated_at"`
}

// SessionFilter captures list criteria for sessions.
type SessionFilter struct {
	TenantID   string
	ScheduleID string
	State      *SessionState
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// SessionRosterRow combines a rostered member with any mark recorded so far.
type SessionRosterRow struct {
	MemberID string            `db:"member_id" json:"member_id"`
	FullName string            `db:"full_name" json:"full_name"`
	Code     string            `db:"code" json:"code"`
	Status   *AttendanceStatus `db:"status" json:"status,omitempty"`
	MarkedAt *time.Time        `db:"marked_at" json:"marked_at,omitempty"`
}
