package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	invoicedomain "github.com/plantmetrics/plant/internal/invoice/domain"
	paymentdomain "github.com/plantmetrics/plant/internal/payment/domain"
	tradedomain "github.com/plantmetrics/plant/internal/trade/domain"
	"github.com/plantmetrics/plant/pkg/db/pagination"
)

type declareTradeRequest struct {
	Amount              string  `json:"amount"`
	Description         string  `json:"description"`
	SourceMemberID      *string `json:"source_member_id"`
	BeneficiaryMemberID *string `json:"beneficiary_member_id"`
	// PhoneNumber, when present, triggers a payment initiation after the
	// declaration commits. Initiation failure never fails the declaration.
	PhoneNumber string `json:"phone_number"`
}

func (s *Server) DeclareTrade(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req declareTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	sourceID, err := parseOptionalID(req.SourceMemberID)
	if err != nil {
		AbortWithError(c, newValidationError("source_member_id", "invalid_source_member_id", "invalid source_member_id"))
		return
	}
	beneficiaryID, err := parseOptionalID(req.BeneficiaryMemberID)
	if err != nil {
		AbortWithError(c, newValidationError("beneficiary_member_id", "invalid_beneficiary_member_id", "invalid beneficiary_member_id"))
		return
	}

	trade, err := s.tradeSvc.Declare(c.Request.Context(), tradedomain.DeclareRequest{
		DeclarerID:          sess.ProfileID,
		ChapterID:           sess.ChapterID,
		Amount:              strings.TrimSpace(req.Amount),
		Description:         strings.TrimSpace(req.Description),
		SourceMemberID:      sourceID,
		BeneficiaryMemberID: beneficiaryID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if phone := strings.TrimSpace(req.PhoneNumber); phone != "" {
		// Fire-and-forget: the declaration already committed.
		go func(tradeID snowflake.ID, phone string) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := s.paymentSvc.Initiate(ctx, paymentdomain.InitiateInput{
				TradeID:     tradeID,
				PhoneNumber: phone,
			}); err != nil {
				s.log.Warn("post-declaration payment initiation failed",
					zap.String("trade_id", tradeID.String()),
					zap.Error(err),
				)
			}
		}(trade.ID, phone)
	}

	c.JSON(http.StatusOK, gin.H{"data": trade})
}

func (s *Server) ListTrades(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query struct {
		pagination.Pagination
		Scope  string `form:"scope"`
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := tradedomain.ListTradesRequest{
		Pagination: query.Pagination,
		Status:     tradedomain.Status(query.Status),
	}
	switch {
	case query.Scope == "chapter" && (sess.IsChapterLeader() || sess.IsAdministrator()):
		if sess.ChapterID == nil && !sess.IsAdministrator() {
			AbortWithError(c, ErrForbidden)
			return
		}
		if sess.ChapterID != nil {
			req.ChapterID = *sess.ChapterID
		}
	case query.Scope == "all" && sess.IsAdministrator():
	default:
		req.DeclarerID = sess.ProfileID
	}

	resp, err := s.tradeSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTrade(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	detail, err := s.tradeSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !s.canSeeTrade(sess.ProfileID, sess.IsAdministrator(), detail) {
		AbortWithError(c, ErrForbidden)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) CancelTrade(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	detail, err := s.tradeSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !sess.IsAdministrator() && detail.DeclarerID != sess.ProfileID {
		AbortWithError(c, ErrForbidden)
		return
	}

	if err := s.tradeSvc.Cancel(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"cancelled": true}})
}

type initiatePaymentRequest struct {
	PhoneNumber string `json:"phone_number"`
}

func (s *Server) InitiatePayment(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	detail, err := s.tradeSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !sess.IsAdministrator() && detail.DeclarerID != sess.ProfileID {
		AbortWithError(c, ErrForbidden)
		return
	}

	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.paymentSvc.Initiate(c.Request.Context(), paymentdomain.InitiateInput{
		TradeID:     id,
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// PaymentCallback receives the provider's asynchronous result envelope. The
// provider expects a 200 acknowledgement; unknown tokens still return 404 per
// the contract.
func (s *Server) PaymentCallback(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.paymentSvc.HandleCallback(c.Request.Context(), payload); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"received": true}})
}

func (s *Server) GetInvoice(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	detail, err := s.tradeSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !s.canSeeTrade(sess.ProfileID, sess.IsAdministrator(), detail) {
		AbortWithError(c, ErrForbidden)
		return
	}

	invoice, err := s.invoiceSvc.GetByTradeID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) GenerateInvoice(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	result, err := s.invoiceSvc.Generate(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) MarkTradePaid(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	err = s.invoiceSvc.MarkPaid(c.Request.Context(), id, invoiceActor(sess.ProfileID))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"paid": true}})
}

func (s *Server) ResendInvoice(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.invoiceSvc.Resend(c.Request.Context(), id, invoiceActor(sess.ProfileID)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"resent": true}})
}

func invoiceActor(profileID snowflake.ID) invoicedomain.Actor {
	return invoicedomain.Actor{ProfileID: profileID}
}

func (s *Server) canSeeTrade(profileID snowflake.ID, isAdmin bool, detail tradedomain.Detail) bool {
	if isAdmin || detail.DeclarerID == profileID {
		return true
	}
	if detail.SourceMemberID != nil && *detail.SourceMemberID == profileID {
		return true
	}
	if detail.BeneficiaryMemberID != nil && *detail.BeneficiaryMemberID == profileID {
		return true
	}
	return false
}
