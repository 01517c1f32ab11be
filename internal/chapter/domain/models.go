package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Chapter is a named local group of members with an optional leader.
type Chapter struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name      string        `gorm:"type:text;not null" json:"name"`
	LeaderID  *snowflake.ID `json:"leader_id,omitempty"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Chapter) TableName() string { return "chapters" }

// Overview is a chapter row joined with its live member count and resolved
// leader name, used by admin listings and the chapters report.
type Overview struct {
	Chapter
	LeaderName  string `json:"leader_name"`
	MemberCount int64  `json:"member_count"`
}
