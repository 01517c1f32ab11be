package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	metricdomain "github.com/plantmetrics/plant/internal/metric/domain"
	"github.com/plantmetrics/plant/pkg/db/pagination"
)

type createMetricRequest struct {
	Category      string `json:"category"`
	Value         int64  `json:"value"`
	Description   string `json:"description"`
	EffectiveDate string `json:"effective_date"`
}

func (s *Server) CreateMetricEntry(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createMetricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	entry, err := s.metricSvc.CreateEntry(c.Request.Context(), metricdomain.CreateEntryRequest{
		UserID:        sess.ProfileID,
		ChapterID:     sess.ChapterID,
		Category:      metricdomain.Category(strings.TrimSpace(req.Category)),
		Value:         req.Value,
		Description:   strings.TrimSpace(req.Description),
		EffectiveDate: strings.TrimSpace(req.EffectiveDate),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entry})
}

func (s *Server) ListMetricEntries(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query struct {
		pagination.Pagination
		UserID    string `form:"user_id"`
		ChapterID string `form:"chapter_id"`
		Category  string `form:"category"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := metricdomain.ListEntriesRequest{
		Pagination: query.Pagination,
		Category:   metricdomain.Category(query.Category),
	}
	if sess.IsAdministrator() {
		if query.UserID != "" {
			userID, err := snowflake.ParseString(query.UserID)
			if err != nil {
				AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user_id"))
				return
			}
			req.UserID = userID
		}
		if query.ChapterID != "" {
			chapterID, err := snowflake.ParseString(query.ChapterID)
			if err != nil {
				AbortWithError(c, newValidationError("chapter_id", "invalid_chapter_id", "invalid chapter_id"))
				return
			}
			req.ChapterID = chapterID
		}
	} else {
		// Non-administrators only ever see their own entries.
		req.UserID = sess.ProfileID
	}

	resp, err := s.metricSvc.ListEntries(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MetricSummary(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	userID := sess.ProfileID
	if raw := c.Query("user_id"); raw != "" {
		if !sess.IsAdministrator() {
			AbortWithError(c, ErrForbidden)
			return
		}
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user_id"))
			return
		}
		userID = parsed
	}

	period := metricdomain.Period(c.DefaultQuery("period", string(metricdomain.PeriodMonth)))
	summary, err := s.metricSvc.Summarize(c.Request.Context(), userID, period)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}
