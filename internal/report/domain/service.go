package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// GenerateRequest is one administrator report run.
type GenerateRequest struct {
	Type        Type      `json:"report_type"`
	Format      Format    `json:"format"`
	Start       time.Time `json:"start_date"`
	End         time.Time `json:"end_date"`
	GeneratedBy snowflake.ID
}

type HistoryFilter struct {
	Type    Type
	AfterID snowflake.ID
	Limit   int
}

type Service interface {
	// Generate produces the artifact and appends a history row. Nothing is
	// recorded when generation fails.
	Generate(ctx context.Context, req GenerateRequest) (Artifact, error)

	ListHistory(ctx context.Context, filter HistoryFilter) ([]History, error)
}

var (
	ErrInvalidType   = errors.New("invalid_report_type")
	ErrInvalidFormat = errors.New("invalid_report_format")
	ErrInvalidRange  = errors.New("invalid_date_range")
)
