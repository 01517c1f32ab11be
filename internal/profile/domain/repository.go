package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Role      Role
	ChapterID snowflake.ID
	Search    string
	AfterID   snowflake.ID
	Limit     int
}

type Repository interface {
	InsertUser(ctx context.Context, db *gorm.DB, user *User) error
	DeleteUser(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	InsertProfile(ctx context.Context, db *gorm.DB, profile *Profile) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Profile, error)
	FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Profile, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Profile, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Profile, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Profile, int64, error)
	Update(ctx context.Context, db *gorm.DB, profile *Profile) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
