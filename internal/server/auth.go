package server

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	obscontext "github.com/plantmetrics/plant/internal/observability/context"
	profiledomain "github.com/plantmetrics/plant/internal/profile/domain"
	"github.com/plantmetrics/plant/internal/session"
)

const sessionTTL = 24 * time.Hour

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) Login(c *gin.Context) {
	if !s.loginLimiter.Allow(c.ClientIP()) {
		AbortWithError(c, ErrTooManyRequests)
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	ctx := c.Request.Context()
	var user struct {
		ID           snowflake.ID
		PasswordHash *string
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, password_hash FROM users WHERE LOWER(email) = ?`, email,
	).Scan(&user).Error
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if user.ID == 0 || user.PasswordHash == nil || !verifyPassword(req.Password, *user.PasswordHash) {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	profile, err := s.profileSvc.GetByUserID(ctx, user.ID)
	if err != nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	if !profile.IsActive {
		AbortWithError(c, profiledomain.ErrProfileInactive)
		return
	}

	token, err := newSessionToken()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	now := s.clock.Now()
	expiresAt := now.Add(sessionTTL)
	err = s.db.WithContext(ctx).Exec(
		`INSERT INTO sessions (id, user_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.genID.Generate(), user.ID, hashSessionToken(token), expiresAt, now,
	).Error
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"profile":    profile,
	}})
}

func (s *Server) Logout(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	err := s.db.WithContext(c.Request.Context()).Exec(
		`DELETE FROM sessions WHERE token_hash = ?`, hashSessionToken(token),
	).Error
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"logged_out": true}})
}

// SessionRequired authenticates a bearer token against the sessions table and
// attaches the resolved Session to the request context.
func (s *Server) SessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := c.Request.Context()
		var row struct {
			UserID    snowflake.ID
			ProfileID snowflake.ID
			Role      string
			ChapterID *snowflake.ID
			IsActive  bool
		}
		err := s.db.WithContext(ctx).Raw(
			`SELECT se.user_id, p.id AS profile_id, p.role, p.chapter_id, p.is_active
			 FROM sessions se
			 JOIN profiles p ON p.user_id = se.user_id
			 WHERE se.token_hash = ? AND se.expires_at > ?`,
			hashSessionToken(token), s.clock.Now(),
		).Scan(&row).Error
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if row.ProfileID == 0 || !row.IsActive {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		sess := session.Session{
			UserID:    row.UserID,
			ProfileID: row.ProfileID,
			Role:      profiledomain.Role(row.Role),
			ChapterID: row.ChapterID,
		}
		ctx = session.WithSession(ctx, sess)
		ctx = obscontext.WithActor(ctx, "user", sess.ProfileID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole gates a route group to the listed roles.
func (s *Server) RequireRole(roles ...profiledomain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := session.FromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		for _, role := range roles {
			if sess.Role == role {
				c.Next()
				return
			}
		}
		AbortWithError(c, ErrForbidden)
	}
}

func (s *Server) sessionFrom(c *gin.Context) (session.Session, bool) {
	return session.FromContext(c.Request.Context())
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	parts := strings.Fields(header)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func newSessionToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

func hashSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
