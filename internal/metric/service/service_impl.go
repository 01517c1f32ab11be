package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/plantmetrics/plant/internal/clock"
	"github.com/plantmetrics/plant/internal/metric/domain"
	"github.com/plantmetrics/plant/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("metric.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) CreateEntry(ctx context.Context, req domain.CreateEntryRequest) (domain.MetricEntry, error) {
	if req.UserID == 0 {
		return domain.MetricEntry{}, domain.ErrInvalidUser
	}
	if !req.Category.Valid() {
		return domain.MetricEntry{}, domain.ErrInvalidCategory
	}
	if req.Value < 0 {
		return domain.MetricEntry{}, domain.ErrInvalidValue
	}

	effectiveDate := s.clock.Now().Truncate(24 * time.Hour)
	if raw := strings.TrimSpace(req.EffectiveDate); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			return domain.MetricEntry{}, domain.ErrInvalidDate
		}
		effectiveDate = parsed
	}

	entry := domain.MetricEntry{
		ID:            s.genID.Generate(),
		UserID:        req.UserID,
		ChapterID:     req.ChapterID,
		Category:      req.Category,
		Value:         req.Value,
		EffectiveDate: effectiveDate,
		CreatedAt:     s.clock.Now(),
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		entry.Description = &desc
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return domain.MetricEntry{}, err
	}
	return entry, nil
}

func (s *Service) ListEntries(ctx context.Context, req domain.ListEntriesRequest) (domain.ListEntriesResponse, error) {
	page := req.Pagination.Normalize()

	query := s.db.WithContext(ctx).Model(&domain.MetricEntry{})
	if req.UserID != 0 {
		query = query.Where("user_id = ?", req.UserID)
	}
	if req.ChapterID != 0 {
		query = query.Where("chapter_id = ?", req.ChapterID)
	}
	if req.Category != "" {
		if !req.Category.Valid() {
			return domain.ListEntriesResponse{}, domain.ErrInvalidCategory
		}
		query = query.Where("category = ?", req.Category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return domain.ListEntriesResponse{}, err
	}

	if after := pagination.DecodeToken(page.PageToken); after != 0 {
		query = query.Where("id > ?", after)
	}

	var entries []domain.MetricEntry
	if err := query.Order("id ASC").Limit(page.PageSize).Find(&entries).Error; err != nil {
		return domain.ListEntriesResponse{}, err
	}

	resp := domain.ListEntriesResponse{Entries: entries}
	resp.TotalCount = total
	if len(entries) == page.PageSize {
		resp.NextPageToken = pagination.EncodeToken(int64(entries[len(entries)-1].ID))
	}
	return resp, nil
}

func (s *Service) Summarize(ctx context.Context, userID snowflake.ID, period domain.Period) (domain.Summary, error) {
	if userID == 0 {
		return domain.Summary{}, domain.ErrInvalidUser
	}
	if !period.Valid() {
		return domain.Summary{}, domain.ErrInvalidPeriod
	}
	start := periodStart(s.clock.Now(), period)

	var rows []struct {
		Category domain.Category
		Total    int64
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT category, SUM(value) AS total
		 FROM metrics
		 WHERE user_id = ? AND effective_date >= ?
		 GROUP BY category`,
		userID, start,
	).Scan(&rows).Error
	if err != nil {
		return domain.Summary{}, err
	}

	summary := domain.Summary{
		UserID:      userID,
		Period:      period,
		PeriodStart: start,
		Totals:      zeroTotals(),
	}
	for _, row := range rows {
		if !row.Category.Valid() {
			continue
		}
		summary.Totals[row.Category] = row.Total
		summary.GrandTotal += row.Total
	}
	return summary, nil
}

func (s *Service) Leaderboard(ctx context.Context, chapterID snowflake.ID, period domain.Period, limit int) ([]domain.LeaderboardRow, error) {
	if chapterID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if !period.Valid() {
		return nil, domain.ErrInvalidPeriod
	}
	start := periodStart(s.clock.Now(), period)

	var rows []struct {
		UserID       snowflake.ID
		FullName     string
		BusinessName string
		Category     domain.Category
		Total        int64
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT m.user_id, p.full_name, COALESCE(p.business_name, '') AS business_name,
		        m.category, SUM(m.value) AS total
		 FROM metrics m
		 JOIN profiles p ON p.id = m.user_id
		 WHERE m.chapter_id = ? AND m.effective_date >= ?
		 GROUP BY m.user_id, p.full_name, p.business_name, m.category`,
		chapterID, start,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byUser := make(map[snowflake.ID]*domain.LeaderboardRow)
	for _, row := range rows {
		entry, ok := byUser[row.UserID]
		if !ok {
			entry = &domain.LeaderboardRow{
				UserID:       row.UserID,
				FullName:     row.FullName,
				BusinessName: row.BusinessName,
				Totals:       zeroTotals(),
			}
			byUser[row.UserID] = entry
		}
		if row.Category.Valid() {
			entry.Totals[row.Category] += row.Total
			entry.GrandTotal += row.Total
		}
	}

	board := make([]domain.LeaderboardRow, 0, len(byUser))
	for _, entry := range byUser {
		board = append(board, *entry)
	}
	// Ties break on ascending user id: snowflake ids are time-ordered, so
	// equal totals rank the earlier-created member first.
	sort.Slice(board, func(i, j int) bool {
		if board[i].GrandTotal != board[j].GrandTotal {
			return board[i].GrandTotal > board[j].GrandTotal
		}
		return board[i].UserID < board[j].UserID
	})
	for i := range board {
		board[i].Rank = i + 1
	}
	if limit > 0 && len(board) > limit {
		board = board[:limit]
	}
	return board, nil
}

func zeroTotals() map[domain.Category]int64 {
	totals := make(map[domain.Category]int64, 5)
	for _, category := range domain.Categories() {
		totals[category] = 0
	}
	return totals
}
