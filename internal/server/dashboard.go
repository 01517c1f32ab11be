package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	auditdomain "github.com/plantmetrics/plant/internal/audit/domain"
	chapterdomain "github.com/plantmetrics/plant/internal/chapter/domain"
	metricdomain "github.com/plantmetrics/plant/internal/metric/domain"
	"github.com/plantmetrics/plant/internal/session"
	tradedomain "github.com/plantmetrics/plant/internal/trade/domain"
	"github.com/plantmetrics/plant/pkg/db/pagination"
)

// Dashboard composes the read views for the caller's role. The independent
// queries fan out concurrently; any failure fails the whole view.
func (s *Server) Dashboard(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	period := metricdomain.Period(c.DefaultQuery("period", string(metricdomain.PeriodMonth)))
	ctx := c.Request.Context()

	var payload gin.H
	var err error
	switch {
	case sess.IsAdministrator():
		payload, err = s.adminDashboard(ctx)
	case sess.IsChapterLeader():
		payload, err = s.leaderDashboard(ctx, sess, period)
	default:
		payload, err = s.memberDashboard(ctx, sess, period)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payload})
}

func (s *Server) memberDashboard(ctx context.Context, sess session.Session, period metricdomain.Period) (gin.H, error) {
	var (
		summary metricdomain.Summary
		trades  tradedomain.ListTradesResponse
	)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		summary, err = s.metricSvc.Summarize(ctx, sess.ProfileID, period)
		return err
	})
	group.Go(func() error {
		var err error
		trades, err = s.tradeSvc.List(ctx, tradedomain.ListTradesRequest{
			Pagination: pagination.Pagination{PageSize: 5},
			DeclarerID: sess.ProfileID,
		})
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return gin.H{
		"summary":       summary,
		"recent_trades": trades.Trades,
	}, nil
}

func (s *Server) leaderDashboard(ctx context.Context, sess session.Session, period metricdomain.Period) (gin.H, error) {
	base, err := s.memberDashboard(ctx, sess, period)
	if err != nil {
		return nil, err
	}
	if sess.ChapterID == nil {
		return base, nil
	}
	chapterID := *sess.ChapterID

	var (
		leaderboard []metricdomain.LeaderboardRow
		roster      []int64
	)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		leaderboard, err = s.metricSvc.Leaderboard(ctx, chapterID, period, 10)
		return err
	})
	group.Go(func() error {
		return s.db.WithContext(ctx).Raw(
			`SELECT COUNT(*) FROM profiles WHERE chapter_id = ? AND is_active = TRUE`,
			chapterID,
		).Scan(&roster).Error
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	base["leaderboard"] = leaderboard
	if len(roster) > 0 {
		base["member_count"] = roster[0]
	}
	return base, nil
}

func (s *Server) adminDashboard(ctx context.Context) (gin.H, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var (
		memberCount  int64
		chapters     []chapterdomain.Overview
		tradeCounts  []statusCount
		revenueCents int64
		recentAudit  []*auditdomain.AuditLog
	)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return s.db.WithContext(ctx).Raw(
			`SELECT COUNT(*) FROM profiles WHERE is_active = TRUE`,
		).Scan(&memberCount).Error
	})
	group.Go(func() error {
		var err error
		chapters, err = s.chapterSvc.List(ctx)
		return err
	})
	group.Go(func() error {
		return s.db.WithContext(ctx).Raw(
			`SELECT status, COUNT(*) AS count FROM trades GROUP BY status`,
		).Scan(&tradeCounts).Error
	})
	group.Go(func() error {
		return s.db.WithContext(ctx).Raw(
			`SELECT COALESCE(SUM(amount_cents), 0) FROM trades WHERE status = ?`,
			tradedomain.StatusPaid,
		).Scan(&revenueCents).Error
	})
	group.Go(func() error {
		var err error
		recentAudit, err = s.auditSvc.List(ctx, auditdomain.ListFilter{Limit: 10})
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	trades := make(map[string]int64, len(tradeCounts))
	for _, row := range tradeCounts {
		trades[row.Status] = row.Count
	}

	return gin.H{
		"member_count":     memberCount,
		"chapters":         chapters,
		"trades_by_status": trades,
		"revenue_cents":    revenueCents,
		"recent_audit":     recentAudit,
	}, nil
}
