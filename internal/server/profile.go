package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	profiledomain "github.com/plantmetrics/plant/internal/profile/domain"
	"github.com/plantmetrics/plant/pkg/db/pagination"
)

func parseIDParam(c *gin.Context) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		return 0, newValidationError("id", "invalid_id", "invalid id")
	}
	return id, nil
}

type createProfileRequest struct {
	Email               string  `json:"email"`
	FullName            string  `json:"full_name"`
	Role                string  `json:"role"`
	ChapterID           *string `json:"chapter_id"`
	BusinessName        string  `json:"business_name"`
	BusinessDescription string  `json:"business_description"`
	Phone               string  `json:"phone"`
}

func (s *Server) CreateProfile(c *gin.Context) {
	var req createProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	chapterID, err := parseOptionalID(req.ChapterID)
	if err != nil {
		AbortWithError(c, newValidationError("chapter_id", "invalid_chapter_id", "invalid chapter_id"))
		return
	}

	profile, err := s.profileSvc.CreateUser(c.Request.Context(), profiledomain.CreateUserRequest{
		Email:               strings.TrimSpace(req.Email),
		FullName:            strings.TrimSpace(req.FullName),
		Role:                profiledomain.Role(strings.TrimSpace(req.Role)),
		ChapterID:           chapterID,
		BusinessName:        strings.TrimSpace(req.BusinessName),
		BusinessDescription: strings.TrimSpace(req.BusinessDescription),
		Phone:               strings.TrimSpace(req.Phone),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": profile})
}

func (s *Server) ListProfiles(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Role      string `form:"role"`
		ChapterID string `form:"chapter_id"`
		Search    string `form:"search"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var chapterID snowflake.ID
	if query.ChapterID != "" {
		parsed, err := snowflake.ParseString(query.ChapterID)
		if err != nil {
			AbortWithError(c, newValidationError("chapter_id", "invalid_chapter_id", "invalid chapter_id"))
			return
		}
		chapterID = parsed
	}

	resp, err := s.profileSvc.List(c.Request.Context(), profiledomain.ListProfilesRequest{
		Pagination: query.Pagination,
		Role:       profiledomain.Role(query.Role),
		ChapterID:  chapterID,
		Search:     strings.TrimSpace(query.Search),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetProfile(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	profile, err := s.profileSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": profile})
}

type updateProfileRequest struct {
	FullName            *string `json:"full_name"`
	BusinessName        *string `json:"business_name"`
	BusinessDescription *string `json:"business_description"`
	Phone               *string `json:"phone"`
	ChapterID           *string `json:"chapter_id"`
	ClearChapter        bool    `json:"clear_chapter"`
}

func (s *Server) UpdateProfile(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.applyProfileUpdate(c, id, true)
}

func (s *Server) GetOwnProfile(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	profile, err := s.profileSvc.GetByID(c.Request.Context(), sess.ProfileID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": profile})
}

func (s *Server) UpdateOwnProfile(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	// Members edit their own card but never reassign their chapter.
	s.applyProfileUpdate(c, sess.ProfileID, false)
}

func (s *Server) applyProfileUpdate(c *gin.Context, id snowflake.ID, allowChapterChange bool) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := profiledomain.UpdateProfileRequest{
		ProfileID:           id,
		FullName:            req.FullName,
		BusinessName:        req.BusinessName,
		BusinessDescription: req.BusinessDescription,
		Phone:               req.Phone,
	}
	if allowChapterChange {
		chapterID, err := parseOptionalID(req.ChapterID)
		if err != nil {
			AbortWithError(c, newValidationError("chapter_id", "invalid_chapter_id", "invalid chapter_id"))
			return
		}
		update.ChapterID = chapterID
		update.ClearChapter = req.ClearChapter
	}

	profile, err := s.profileSvc.Update(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": profile})
}

func (s *Server) ActivateProfile(c *gin.Context) {
	s.setProfileActive(c, true)
}

func (s *Server) DeactivateProfile(c *gin.Context) {
	s.setProfileActive(c, false)
}

func (s *Server) setProfileActive(c *gin.Context, active bool) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.profileSvc.SetActive(c.Request.Context(), id, active); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id.String(), "is_active": active}})
}

func (s *Server) DeleteProfile(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.profileSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

func parseOptionalID(value *string) (*snowflake.ID, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(strings.TrimSpace(*value))
	if err != nil {
		return nil, err
	}
	return &id, nil
}
