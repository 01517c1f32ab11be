package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Category classifies one metric observation.
type Category string

const (
	CategoryParticipation Category = "participation"
	CategoryLearning      Category = "learning"
	CategoryActivity      Category = "activity"
	CategoryNetworking    Category = "networking"
	CategoryTrade         Category = "trade"
)

// Categories lists the five enumerated kinds in presentation order.
func Categories() []Category {
	return []Category{
		CategoryParticipation,
		CategoryLearning,
		CategoryActivity,
		CategoryNetworking,
		CategoryTrade,
	}
}

// Valid reports whether the category is one of the enumerated kinds.
func (c Category) Valid() bool {
	switch c {
	case CategoryParticipation, CategoryLearning, CategoryActivity, CategoryNetworking, CategoryTrade:
		return true
	}
	return false
}

// Period selects the aggregation window for summaries and leaderboards.
type Period string

const (
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

// Valid reports whether the period is one of the supported windows.
func (p Period) Valid() bool {
	switch p {
	case PeriodMonth, PeriodQuarter, PeriodYear:
		return true
	}
	return false
}

// MetricEntry is one dated, categorized observation. Entries are immutable
// once created; only sums per user/category/period are derived from them.
type MetricEntry struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID        snowflake.ID  `gorm:"not null;index" json:"user_id"`
	ChapterID     *snowflake.ID `gorm:"index" json:"chapter_id,omitempty"`
	Category      Category      `gorm:"type:text;not null" json:"category"`
	Value         int64         `gorm:"not null" json:"value"`
	Description   *string       `gorm:"type:text" json:"description,omitempty"`
	EffectiveDate time.Time     `gorm:"type:date;not null" json:"effective_date"`
	CreatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (MetricEntry) TableName() string { return "metrics" }

// Summary holds one user's per-category totals for a period. Every category
// is always present, zero when no entries contributed.
type Summary struct {
	UserID      snowflake.ID       `json:"user_id"`
	Period      Period             `json:"period"`
	PeriodStart time.Time          `json:"period_start"`
	Totals      map[Category]int64 `json:"totals"`
	GrandTotal  int64              `json:"grand_total"`
}

// LeaderboardRow is one ranked member on a chapter leaderboard.
type LeaderboardRow struct {
	Rank         int                `json:"rank"`
	UserID       snowflake.ID       `json:"user_id"`
	FullName     string             `json:"full_name"`
	BusinessName string             `json:"business_name,omitempty"`
	Totals       map[Category]int64 `json:"totals"`
	GrandTotal   int64              `json:"grand_total"`
}
