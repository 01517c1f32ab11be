package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	profiledomain "github.com/plantmetrics/plant/internal/profile/domain"
)

type CreateChapterRequest struct {
	Name     string
	LeaderID *snowflake.ID
}

type UpdateChapterRequest struct {
	ChapterID snowflake.ID
	Name      *string
	LeaderID  *snowflake.ID
}

type Service interface {
	Create(ctx context.Context, req CreateChapterRequest) (Chapter, error)
	GetByID(ctx context.Context, id snowflake.ID) (Chapter, error)
	List(ctx context.Context) ([]Overview, error)
	Update(ctx context.Context, req UpdateChapterRequest) (Chapter, error)
	// Delete removes an empty chapter. Deletion is rejected while any
	// profile still references the chapter.
	Delete(ctx context.Context, id snowflake.ID) error
	Roster(ctx context.Context, id snowflake.ID) ([]profiledomain.Profile, error)
}

var (
	ErrInvalidName       = errors.New("invalid_name")
	ErrChapterNotFound   = errors.New("chapter_not_found")
	ErrChapterHasMembers = errors.New("chapter_has_members")
	ErrLeaderNotFound    = errors.New("leader_not_found")
	ErrNotChapterLeader  = errors.New("not_chapter_leader")
)
