package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	profiledomain "github.com/plantmetrics/plant/internal/profile/domain"
)

const (
	defaultAdminEmail    = "admin@plantmetrics.app"
	defaultAdminPassword = "changeme"
	defaultAdminName     = "Platform Administrator"
)

// EnsureDefaultAdmin seeds the bootstrap administrator for startup. The
// seeded password is expected to be rotated after first login.
func EnsureDefaultAdmin(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.WithContext(ctx).
			Model(&profiledomain.Profile{}).
			Where("role = ?", profiledomain.RoleAdministrator).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(defaultAdminPassword), 12)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		email := strings.ToLower(defaultAdminEmail)
		passwordHash := string(hash)
		user := profiledomain.User{
			ID:            node.Generate(),
			Email:         email,
			PasswordHash:  &passwordHash,
			PasswordSetAt: &now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
			return err
		}

		profile := profiledomain.Profile{
			ID:        node.Generate(),
			UserID:    user.ID,
			Email:     email,
			FullName:  defaultAdminName,
			Role:      profiledomain.RoleAdministrator,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.WithContext(ctx).Create(&profile).Error
	})
}
