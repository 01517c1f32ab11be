package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	chapterdomain "github.com/plantmetrics/plant/internal/chapter/domain"
	metricdomain "github.com/plantmetrics/plant/internal/metric/domain"
)

type createChapterRequest struct {
	Name     string  `json:"name"`
	LeaderID *string `json:"leader_id"`
}

func (s *Server) CreateChapter(c *gin.Context) {
	var req createChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	leaderID, err := parseOptionalID(req.LeaderID)
	if err != nil {
		AbortWithError(c, newValidationError("leader_id", "invalid_leader_id", "invalid leader_id"))
		return
	}

	chapter, err := s.chapterSvc.Create(c.Request.Context(), chapterdomain.CreateChapterRequest{
		Name:     strings.TrimSpace(req.Name),
		LeaderID: leaderID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": chapter})
}

func (s *Server) ListChapters(c *gin.Context) {
	chapters, err := s.chapterSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": chapters})
}

func (s *Server) GetChapter(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	chapter, err := s.chapterSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": chapter})
}

type updateChapterRequest struct {
	Name     *string `json:"name"`
	LeaderID *string `json:"leader_id"`
}

func (s *Server) UpdateChapter(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req updateChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	leaderID, err := parseOptionalID(req.LeaderID)
	if err != nil {
		AbortWithError(c, newValidationError("leader_id", "invalid_leader_id", "invalid leader_id"))
		return
	}

	chapter, err := s.chapterSvc.Update(c.Request.Context(), chapterdomain.UpdateChapterRequest{
		ChapterID: id,
		Name:      req.Name,
		LeaderID:  leaderID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": chapter})
}

func (s *Server) DeleteChapter(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.chapterSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

func (s *Server) ChapterRoster(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	sess, ok := s.sessionFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	// Leaders only see their own roster.
	if sess.IsChapterLeader() && !sess.IsAdministrator() {
		if sess.ChapterID == nil || *sess.ChapterID != id {
			AbortWithError(c, ErrForbidden)
			return
		}
	}

	roster, err := s.chapterSvc.Roster(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": roster})
}

func (s *Server) ChapterLeaderboard(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	sess, ok := s.sessionFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	if !sess.IsAdministrator() {
		if sess.ChapterID == nil || *sess.ChapterID != id {
			AbortWithError(c, ErrForbidden)
			return
		}
	}

	period := metricdomain.Period(c.DefaultQuery("period", string(metricdomain.PeriodMonth)))
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
			return
		}
		limit = parsed
	}

	rows, err := s.metricSvc.Leaderboard(c.Request.Context(), id, period, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}
