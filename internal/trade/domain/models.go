package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status tracks a trade through payment settlement.
//
//	pending -> invoiced -> paid
//	pending -> cancelled
//	pending|invoiced -> failed
type Status string

const (
	StatusPending   Status = "pending"
	StatusInvoiced  Status = "invoiced"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusPaid, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Trade is a declared business transaction between members. Rows are never
// deleted; terminal statuses close them out.
type Trade struct {
	ID                  snowflake.ID      `gorm:"primaryKey" json:"id"`
	DeclarerID          snowflake.ID      `gorm:"not null;index" json:"declarer_id"`
	ChapterID           *snowflake.ID     `gorm:"index" json:"chapter_id,omitempty"`
	AmountCents         int64             `gorm:"not null" json:"amount_cents"`
	Description         string            `gorm:"type:text;not null" json:"description"`
	SourceMemberID      *snowflake.ID     `json:"source_member_id,omitempty"`
	BeneficiaryMemberID *snowflake.ID     `json:"beneficiary_member_id,omitempty"`
	Status              Status            `gorm:"type:text;not null;default:'pending';index" json:"status"`
	PaymentRef          *string           `gorm:"type:text" json:"payment_ref,omitempty"`
	Metadata            datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt           time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Trade) TableName() string { return "trades" }

// Party is a resolved counterpart reference on a trade detail view.
type Party struct {
	ID           snowflake.ID `json:"id"`
	FullName     string       `json:"full_name"`
	BusinessName string       `json:"business_name,omitempty"`
}

// Detail is a trade with every foreign reference resolved into a typed
// nested object. All list queries normalize through one mapping so callers
// never see raw join rows.
type Detail struct {
	Trade
	Declarer    Party  `json:"declarer"`
	Source      *Party `json:"source,omitempty"`
	Beneficiary *Party `json:"beneficiary,omitempty"`
	ChapterName string `json:"chapter_name,omitempty"`
}
