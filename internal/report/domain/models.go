package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Type selects what a report aggregates.
type Type string

const (
	TypeMetrics   Type = "metrics"
	TypeTrades    Type = "trades"
	TypeFinancial Type = "financial"
	TypeMembers   Type = "members"
	TypeChapters  Type = "chapters"
)

func (t Type) Valid() bool {
	switch t {
	case TypeMetrics, TypeTrades, TypeFinancial, TypeMembers, TypeChapters:
		return true
	}
	return false
}

// Title is the file-name prefix, e.g. "Metrics_Report_...".
func (t Type) Title() string {
	switch t {
	case TypeMetrics:
		return "Metrics"
	case TypeTrades:
		return "Trades"
	case TypeFinancial:
		return "Financial"
	case TypeMembers:
		return "Members"
	case TypeChapters:
		return "Chapters"
	}
	return "Report"
}

// Format is the serialization target.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
	FormatCSV  Format = "csv"
)

func (f Format) Valid() bool {
	switch f {
	case FormatXLSX, FormatPDF, FormatCSV:
		return true
	}
	return false
}

func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	case FormatCSV:
		return "text/csv"
	}
	return "application/octet-stream"
}

// History is one row of reports_history. Written only for reports that were
// fully generated.
type History struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ReportType  Type         `gorm:"not null" json:"report_type"`
	PeriodLabel string       `gorm:"not null" json:"period_label"`
	Format      Format       `gorm:"not null" json:"format"`
	FileName    string       `gorm:"not null" json:"file_name"`
	RangeStart  time.Time    `gorm:"not null" json:"range_start"`
	RangeEnd    time.Time    `gorm:"not null" json:"range_end"`
	GeneratedBy snowflake.ID `gorm:"not null" json:"generated_by"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (History) TableName() string { return "reports_history" }

// Artifact is a generated report file.
type Artifact struct {
	FileName    string
	ContentType string
	Data        []byte
}
