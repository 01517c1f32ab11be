package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// RecipientType selects who a broadcast goes to.
type RecipientType string

const (
	RecipientAll     RecipientType = "all"
	RecipientChapter RecipientType = "chapter"
	RecipientRole    RecipientType = "role"
	RecipientCustom  RecipientType = "custom"
)

func (r RecipientType) Valid() bool {
	switch r {
	case RecipientAll, RecipientChapter, RecipientRole, RecipientCustom:
		return true
	}
	return false
}

// Status of one bulk-send attempt.
type Status string

const (
	StatusSent      Status = "sent"
	StatusScheduled Status = "scheduled"
	StatusFailed    Status = "failed"
)

// History is one row of notifications_history, written once per batch.
type History struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id"`
	NotificationType  string            `gorm:"not null" json:"notification_type"`
	RecipientType     RecipientType     `gorm:"not null" json:"recipient_type"`
	RecipientSelector *string           `json:"recipient_selector,omitempty"`
	Subject           string            `gorm:"not null" json:"subject"`
	Message           string            `gorm:"type:text;not null" json:"message"`
	RecipientCount    int64             `gorm:"not null;default:0" json:"recipient_count"`
	SenderID          *snowflake.ID     `json:"sender_id,omitempty"`
	Status            Status            `gorm:"not null" json:"status"`
	ScheduledFor      *time.Time        `json:"scheduled_for,omitempty"`
	Metadata          datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`
	CreatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (History) TableName() string { return "notifications_history" }

// Recipient is one resolved delivery target. Name feeds the {name} template
// placeholder.
type Recipient struct {
	Email string
	Name  string
}
