package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type testCleanupRequest struct {
	Prefix string `json:"prefix"`
}

// TestCleanup removes fixture users created by end-to-end suites, matched by
// email prefix. Registered only outside production.
func (s *Server) TestCleanup(c *gin.Context) {
	if s.cfg.IsProduction() {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req testCleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	prefix := strings.TrimSpace(req.Prefix)
	if prefix == "" {
		AbortWithError(c, newValidationError("prefix", "required", "prefix is required"))
		return
	}

	ctx := c.Request.Context()
	userIDs, err := s.loadUserIDsByPrefix(ctx, prefix)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.deleteUserData(ctx, userIDs); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "deleted_users": len(userIDs)})
}

func (s *Server) loadUserIDsByPrefix(ctx context.Context, prefix string) ([]int64, error) {
	like := strings.TrimSpace(prefix) + "%"
	var userIDs []int64
	if err := s.db.WithContext(ctx).
		Table("users").
		Select("id").
		Where("email LIKE ?", like).
		Scan(&userIDs).Error; err != nil {
		return nil, err
	}
	return userIDs, nil
}

func (s *Server) deleteUserData(ctx context.Context, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	queries := []string{
		`DELETE FROM sessions WHERE user_id IN ?`,
		`UPDATE chapters SET leader_id = NULL WHERE leader_id IN (SELECT id FROM profiles WHERE user_id IN ?)`,
		`DELETE FROM metrics WHERE user_id IN (SELECT id FROM profiles WHERE user_id IN ?)`,
		`DELETE FROM invoices WHERE trade_id IN (SELECT id FROM trades WHERE declarer_id IN (SELECT id FROM profiles WHERE user_id IN ?))`,
		`DELETE FROM trades WHERE declarer_id IN (SELECT id FROM profiles WHERE user_id IN ?)`,
		`DELETE FROM profiles WHERE user_id IN ?`,
		`DELETE FROM users WHERE id IN ?`,
	}
	for _, query := range queries {
		if err := s.db.WithContext(ctx).Exec(query, userIDs).Error; err != nil {
			return err
		}
	}
	return nil
}
