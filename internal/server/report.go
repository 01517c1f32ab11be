package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	reportdomain "github.com/plantmetrics/plant/internal/report/domain"
)

type generateReportRequest struct {
	ReportType string `json:"report_type"`
	Format     string `json:"format"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

func (s *Server) GenerateReport(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req generateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	start, err := parseOptionalTime(req.StartDate, false)
	if err != nil || start == nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
		return
	}
	end, err := parseOptionalTime(req.EndDate, true)
	if err != nil || end == nil {
		AbortWithError(c, newValidationError("end_date", "invalid_end_date", "invalid end_date"))
		return
	}

	format := reportdomain.Format(req.Format)
	if format == "" {
		format = reportdomain.FormatXLSX
	}

	artifact, err := s.reportSvc.Generate(c.Request.Context(), reportdomain.GenerateRequest{
		Type:        reportdomain.Type(req.ReportType),
		Format:      format,
		Start:       *start,
		End:         *end,
		GeneratedBy: sess.ProfileID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.FileName))
	c.Data(http.StatusOK, artifact.ContentType, artifact.Data)
}

func (s *Server) ListReports(c *gin.Context) {
	var query struct {
		ReportType string `form:"report_type"`
		AfterID    string `form:"after_id"`
		Limit      int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	filter := reportdomain.HistoryFilter{
		Type:  reportdomain.Type(query.ReportType),
		Limit: query.Limit,
	}
	if query.AfterID != "" {
		afterID, err := parseOptionalID(&query.AfterID)
		if err != nil {
			AbortWithError(c, newValidationError("after_id", "invalid_after_id", "invalid after_id"))
			return
		}
		filter.AfterID = *afterID
	}

	rows, err := s.reportSvc.ListHistory(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}
