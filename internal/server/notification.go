package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	notificationdomain "github.com/plantmetrics/plant/internal/notification/domain"
)

type sendNotificationRequest struct {
	NotificationType string   `json:"notification_type"`
	RecipientType    string   `json:"recipient_type"`
	Subject          string   `json:"subject"`
	Message          string   `json:"message"`
	ChapterID        *string  `json:"chapter_id"`
	Role             string   `json:"role"`
	CustomEmails     []string `json:"custom_emails"`
	ScheduledFor     string   `json:"scheduled_for"`
}

func (s *Server) SendNotification(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req sendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	chapterID, err := parseOptionalID(req.ChapterID)
	if err != nil {
		AbortWithError(c, newValidationError("chapter_id", "invalid_chapter_id", "invalid chapter_id"))
		return
	}

	var scheduledFor *time.Time
	if raw := strings.TrimSpace(req.ScheduledFor); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("scheduled_for", "invalid_scheduled_for", "invalid scheduled_for"))
			return
		}
		ts = ts.UTC()
		scheduledFor = &ts
	}

	result, err := s.notificationSvc.Broadcast(c.Request.Context(), notificationdomain.BroadcastRequest{
		NotificationType: strings.TrimSpace(req.NotificationType),
		RecipientType:    notificationdomain.RecipientType(strings.TrimSpace(req.RecipientType)),
		Subject:          req.Subject,
		Message:          req.Message,
		ChapterID:        chapterID,
		Role:             strings.TrimSpace(req.Role),
		CustomEmails:     req.CustomEmails,
		ScheduledFor:     scheduledFor,
		SenderID:         sess.ProfileID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ListNotifications(c *gin.Context) {
	var query struct {
		Status  string `form:"status"`
		AfterID string `form:"after_id"`
		Limit   int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	filter := notificationdomain.ListFilter{
		Status: notificationdomain.Status(query.Status),
		Limit:  query.Limit,
	}
	if query.AfterID != "" {
		afterID, err := parseOptionalID(&query.AfterID)
		if err != nil {
			AbortWithError(c, newValidationError("after_id", "invalid_after_id", "invalid after_id"))
			return
		}
		filter.AfterID = *afterID
	}

	rows, err := s.notificationSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}
