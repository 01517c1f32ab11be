package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	DeclarerID snowflake.ID
	ChapterID  snowflake.ID
	Status     Status
	AfterID    snowflake.ID
	Limit      int
}

// StuckFilter selects invoiced trades older than the cutoff that still have
// no invoice row. Used by the grace-window sweeper.
type StuckFilter struct {
	Before time.Time
	Limit  int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, trade *Trade) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Trade, error)
	FindByPaymentRef(ctx context.Context, db *gorm.DB, paymentRef string) (*Trade, error)
	FindDetailByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Detail, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Detail, int64, error)
	// TransitionStatus performs a conditional status update and reports
	// whether a row actually moved. Racing writers observe zero rows.
	TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []Status, to Status) (bool, error)
	// SetPaymentRef records the provider correlation token alongside a
	// conditional transition out of pending.
	SetPaymentRef(ctx context.Context, db *gorm.DB, id snowflake.ID, paymentRef string, to Status) (bool, error)
	MergeMetadata(ctx context.Context, db *gorm.DB, id snowflake.ID, metadata map[string]any) error
	ListStuckInvoiced(ctx context.Context, db *gorm.DB, filter StuckFilter) ([]Trade, error)
}
