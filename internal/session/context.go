package session

import (
	"context"

	"github.com/bwmarrin/snowflake"

	profiledomain "github.com/plantmetrics/plant/internal/profile/domain"
)

// Session is the authenticated caller attached to a request context.
type Session struct {
	UserID    snowflake.ID
	ProfileID snowflake.ID
	Role      profiledomain.Role
	ChapterID *snowflake.ID
}

func (s Session) IsAdministrator() bool {
	return s.Role == profiledomain.RoleAdministrator
}

func (s Session) IsChapterLeader() bool {
	return s.Role == profiledomain.RoleChapterLeader
}

type contextKey string

const sessionKey contextKey = "session"

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}
