package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReportType enumerates the export kinds.
type ReportType string

const (
	ReportTypeDepartmentAttendance ReportType = "department_attendance"
	ReportTypeMemberAttendance     ReportType = "member_attendance"
)

// ReportFormat enumerates output formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportStatus tracks background job progress.
type ReportStatus string

const (
	ReportStatusQueued    ReportStatus = "queued"
	ReportStatusRunning   ReportStatus = "running"
	ReportStatusCompleted ReportStatus = "completed"
	ReportStatusFailed    ReportStatus = "failed"
)

// ReportJobParams describes what to export. Stored as JSONB.
type ReportJobParams struct {
	DepartmentID string       `json:"department_id,omitempty"`
	MemberID     string       `json:"member_id,omitempty"`
	DateFrom     string       `json:"date_from"`
	DateTo       string       `json:"date_to"`
	Format       ReportFormat `json:"format"`
}

// Value implements driver.Valuer for JSONB storage.
func (p ReportJobParams) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (p *ReportJobParams) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		return nil
	}
	return fmt.Errorf("unsupported report params type %T", src)
}

// ReportJob is a queued attendance export.
type ReportJob struct {
	ID           string          `db:"id" json:"id"`
	TenantID     string          `db:"tenant_id" json:"tenant_id"`
	Type         ReportType      `db:"type" json:"type"`
	Params       ReportJobParams `db:"params" json:"params"`
	Status       ReportStatus    `db:"status" json:"status"`
	FilePath     *string         `db:"file_path" json:"-"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error,omitempty"`
	RequestedBy  string          `db:"requested_by" json:"requested_by"`
	StartedAt    *time.Time      `db:"started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
