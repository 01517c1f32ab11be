package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Role is the platform-wide capability level attached to a profile.
type Role string

const (
	RoleMember        Role = "member"
	RoleChapterLeader Role = "chapter_leader"
	RoleAdministrator Role = "administrator"
)

// Valid reports whether the role is one of the three enumerated kinds.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleChapterLeader, RoleAdministrator:
		return true
	}
	return false
}

// User is the authentication identity behind a profile. The password hash is
// nil until the member completes the password-set flow.
type User struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	Email         string       `gorm:"type:text;not null;uniqueIndex:ux_users_email" json:"email"`
	PasswordHash  *string      `gorm:"type:text" json:"-"`
	PasswordSetAt *time.Time   `json:"-"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Profile is a member's account record.
type Profile struct {
	ID                  snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID              snowflake.ID  `gorm:"not null;uniqueIndex:ux_profiles_user" json:"user_id"`
	Email               string        `gorm:"type:text;not null;uniqueIndex:ux_profiles_email" json:"email"`
	FullName            string        `gorm:"type:text;not null" json:"full_name"`
	Role                Role          `gorm:"type:text;not null;index" json:"role"`
	ChapterID           *snowflake.ID `gorm:"index" json:"chapter_id,omitempty"`
	BusinessName        *string       `gorm:"type:text" json:"business_name,omitempty"`
	BusinessDescription *string       `gorm:"type:text" json:"business_description,omitempty"`
	Phone               *string       `gorm:"type:text" json:"phone,omitempty"`
	IsActive            bool          `gorm:"not null;default:true" json:"is_active"`
	CreatedAt           time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Profile) TableName() string { return "profiles" }

// DisplayName prefers the business name for directory-style views.
func (p Profile) DisplayName() string {
	if p.BusinessName != nil && *p.BusinessName != "" {
		return *p.BusinessName
	}
	return p.FullName
}
