package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	"github.com/plantmetrics/plant/pkg/db/pagination"
)

type CreateUserRequest struct {
	Email               string
	FullName            string
	Role                Role
	ChapterID           *snowflake.ID
	BusinessName        string
	BusinessDescription string
	Phone               string
}

type UpdateProfileRequest struct {
	ProfileID           snowflake.ID
	FullName            *string
	BusinessName        *string
	BusinessDescription *string
	Phone               *string
	ChapterID           *snowflake.ID
	ClearChapter        bool
}

type ListProfilesRequest struct {
	pagination.Pagination
	Role      Role
	ChapterID snowflake.ID
	Search    string
}

type ListProfilesResponse struct {
	pagination.PageInfo
	Profiles []Profile `json:"profiles"`
}

type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (Profile, error)
	GetByID(ctx context.Context, id snowflake.ID) (Profile, error)
	GetByUserID(ctx context.Context, userID snowflake.ID) (Profile, error)
	List(ctx context.Context, req ListProfilesRequest) (ListProfilesResponse, error)
	Update(ctx context.Context, req UpdateProfileRequest) (Profile, error)
	SetActive(ctx context.Context, id snowflake.ID, active bool) error
	Delete(ctx context.Context, id snowflake.ID) error
}

var (
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrInvalidFullName  = errors.New("invalid_full_name")
	ErrInvalidRole      = errors.New("invalid_role")
	ErrEmailTaken       = errors.New("email_taken")
	ErrProfileNotFound  = errors.New("profile_not_found")
	ErrChapterNotFound  = errors.New("chapter_not_found")
	ErrProfileInactive  = errors.New("profile_inactive")
	ErrIdentityRollback = errors.New("identity_rollback_failed")
)
