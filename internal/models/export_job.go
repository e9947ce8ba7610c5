package models

import (
	"database/sql/driver"
	"time"
)

// ExportType enumerates the ledgers that can be exported.
type ExportType string

const (
	ExportTypeFeeLedger ExportType = "fee_ledger"
	ExportTypeStandings ExportType = "standings"
	ExportTypePayroll   ExportType = "payroll"
)

// ExportFormat enumerates the file formats an export renders to.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatXLSX ExportFormat = "xlsx"
)

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportParams are the request options persisted with a job.
type ExportParams struct {
	AsOf      string `json:"as_of,omitempty"`
	ClassName string `json:"class_name,omitempty"`
}

func (p ExportParams) Value() (driver.Value, error) {
	return jsonValue(p, "export params")
}

func (p *ExportParams) Scan(value interface{}) error {
	*p = ExportParams{}
	return scanJSON(value, p, "export params")
}

// ExportJob is the persisted state of an asynchronous export.
type ExportJob struct {
	ID           string       `db:"id" json:"id"`
	Type         ExportType   `db:"type" json:"type"`
	Format       ExportFormat `db:"format" json:"format"`
	Params       ExportParams `db:"params" json:"params"`
	Status       ExportStatus `db:"status" json:"status"`
	Progress     int          `db:"progress" json:"progress"`
	ResultURL    *string      `db:"result_url" json:"result_url,omitempty"`
	ErrorMessage *string      `db:"error_message" json:"error,omitempty"`
	CreatedBy    string       `db:"created_by" json:"created_by"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
	FinishedAt   *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
}
