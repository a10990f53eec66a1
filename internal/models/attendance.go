package models

import "time"

// AttendanceStatus enumerates mark values.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceExcused AttendanceStatus = "excused"
)

// Valid reports whether the status is one of the four mark values.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceLate, AttendanceAbsent, AttendanceExcused:
		return true
	}
	return false
}

// BulkOperationMode selects failure semantics for bulk marking.
type BulkOperationMode string

const (
	BulkModeAtomic         BulkOperationMode = "atomic"
	BulkModePartialOnError BulkOperationMode = "partial_on_error"
)

// AttendanceRecord is one member's mark within a session. Unique per
// session/member; immutable once the session leaves the open state.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	SessionID string           `db:"session_id" json:"session_id"`
	MemberID  string           `db:"member_id" json:"member_id"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Notes     *string          `db:"notes" json:"notes,omitempty"`
	MarkedBy  string           `db:"marked_by" json:"marked_by"`
	MarkedAt  time.Time        `db:"marked_at" json:"marked_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceBulkConflict describes one rejected row in a partial bulk write.
type AttendanceBulkConflict struct {
	MemberID string `json:"member_id"`
	Reason   string `json:"reason"`
}

// AttendanceHistoryRow is one session's mark in a member history listing.
type AttendanceHistoryRow struct {
	SessionID    string           `db:"session_id" json:"session_id"`
	ScheduleName string           `db:"schedule_name" json:"schedule_name"`
	Date         time.Time        `db:"date" json:"date"`
	Status       AttendanceStatus `db:"status" json:"status"`
	MarkedAt     time.Time        `db:"marked_at" json:"marked_at"`
}

// AttendanceSummary aggregates a member's marks over a period.
type AttendanceSummary struct {
	MemberID   string  `db:"member_id" json:"member_id"`
	Total      int     `db:"total" json:"total"`
	Present    int     `db:"present" json:"present"`
	Late       int     `db:"late" json:"late"`
	Absent     int     `db:"absent" json:"absent"`
	Excused    int     `db:"excused" json:"excused"`
	Percentage float64 `json:"percentage"`
}

// Rate computes the attended share (present + late + excused) of all marks.
func (s *AttendanceSummary) Rate() float64 {
	if s == nil || s.Total == 0 {
		return 0
	}
	return float64(s.Present+s.Late+s.Excused) / float64(s.Total) * 100
}

// DepartmentReportRow is one member line in a department/day report.
type DepartmentReportRow struct {
	MemberID string           `db:"member_id" json:"member_id"`
	FullName string           `db:"full_name" json:"full_name"`
	Code     string           `db:"code" json:"code"`
	Date     time.Time        `db:"date" json:"date"`
	Status   AttendanceStatus `db:"status" json:"status"`
}
