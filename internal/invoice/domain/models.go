package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Invoice is the billing document issued for a trade. At most one invoice
// exists per trade; the amount is copied from the trade at issuance and
// never diverges from it.
type Invoice struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	TradeID       snowflake.ID `gorm:"not null;uniqueIndex:ux_invoices_trade" json:"trade_id"`
	InvoiceNumber string       `gorm:"type:text;not null;uniqueIndex:ux_invoices_number" json:"invoice_number"`
	AmountCents   int64        `gorm:"not null" json:"amount_cents"`
	FileName      *string      `gorm:"type:text" json:"file_name,omitempty"`
	IssuedAt      time.Time    `gorm:"not null" json:"issued_at"`
	PaidAt        *time.Time   `json:"paid_at,omitempty"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Paid reports whether payment has been reconciled against this invoice.
func (i Invoice) Paid() bool { return i.PaidAt != nil }
