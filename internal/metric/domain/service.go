package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	"github.com/plantmetrics/plant/pkg/db/pagination"
)

type CreateEntryRequest struct {
	UserID        snowflake.ID
	ChapterID     *snowflake.ID
	Category      Category
	Value         int64
	Description   string
	EffectiveDate string // YYYY-MM-DD, defaults to today when empty
}

type ListEntriesRequest struct {
	pagination.Pagination
	UserID    snowflake.ID
	ChapterID snowflake.ID
	Category  Category
}

type ListEntriesResponse struct {
	pagination.PageInfo
	Entries []MetricEntry `json:"entries"`
}

type Service interface {
	CreateEntry(ctx context.Context, req CreateEntryRequest) (MetricEntry, error)
	ListEntries(ctx context.Context, req ListEntriesRequest) (ListEntriesResponse, error)
	// Summarize returns per-category totals for the user over the period.
	// A user with zero entries gets an all-zero summary, not an error.
	Summarize(ctx context.Context, userID snowflake.ID, period Period) (Summary, error)
	// Leaderboard ranks a chapter's members by summed totals over the
	// period, descending; ties break on ascending member id.
	Leaderboard(ctx context.Context, chapterID snowflake.ID, period Period, limit int) ([]LeaderboardRow, error)
}

var (
	ErrInvalidCategory = errors.New("invalid_category")
	ErrInvalidValue    = errors.New("invalid_value")
	ErrInvalidPeriod   = errors.New("invalid_period")
	ErrInvalidDate     = errors.New("invalid_date")
	ErrInvalidUser     = errors.New("invalid_user")
)
