package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"

	metricdomain "github.com/plantmetrics/plant/internal/metric/domain"
	"github.com/plantmetrics/plant/internal/report/domain"
	tradedomain "github.com/plantmetrics/plant/internal/trade/domain"
	"github.com/plantmetrics/plant/pkg/money"
)

// reportData is the gathered, name-resolved content of one report run. Only
// the section matching the report type is populated.
type reportData struct {
	Metrics   *metricsData
	Trades    *tradesData
	Financial *financialData
	Members   *membersData
	Chapters  *chaptersData
}

type metricsData struct {
	Totals     map[metricdomain.Category]int64
	GrandTotal int64
	Details    []metricDetailRow
}

type metricDetailRow struct {
	Date         time.Time
	Category     string
	Value        int64
	MemberName   string
	BusinessName string
	ChapterName  string
}

type tradesData struct {
	Count          int64
	TotalCents     int64
	AverageCents   int64
	CountsByStatus map[tradedomain.Status]int64
	Details        []tradeDetailRow
}

type tradeDetailRow struct {
	Date            time.Time
	AmountCents     int64
	Status          string
	DeclarerName    string
	SourceName      string
	BeneficiaryName string
	ChapterName     string
	Description     string
}

type financialData struct {
	RevenueCents        int64
	InvoicePaidCents    int64
	InvoicePaidCount    int64
	InvoicePendingCents int64
	InvoicePendingCount int64
}

type membersData struct {
	CountsByRole map[string]int64
	Directory    []memberRow
}

type memberRow struct {
	FullName     string
	BusinessName string
	Email        string
	Role         string
	ChapterName  string
	JoinedAt     time.Time
}

type chaptersData struct {
	Rows []chapterRow
}

type chapterRow struct {
	Name        string
	LeaderName  string
	MemberCount int64
	CreatedAt   time.Time
}

func (s *Service) gather(ctx context.Context, req domain.GenerateRequest) (reportData, error) {
	var (
		data reportData
		err  error
	)
	switch req.Type {
	case domain.TypeMetrics:
		data.Metrics, err = s.gatherMetrics(ctx, req.Start, req.End)
	case domain.TypeTrades:
		data.Trades, err = s.gatherTrades(ctx, req.Start, req.End)
	case domain.TypeFinancial:
		data.Financial, err = s.gatherFinancial(ctx, req.Start, req.End)
	case domain.TypeMembers:
		data.Members, err = s.gatherMembers(ctx, req.Start, req.End)
	case domain.TypeChapters:
		data.Chapters, err = s.gatherChapters(ctx)
	default:
		err = domain.ErrInvalidType
	}
	return data, err
}

func (s *Service) gatherMetrics(ctx context.Context, start, end time.Time) (*metricsData, error) {
	var entries []metricdomain.MetricEntry
	err := s.db.WithContext(ctx).
		Where("effective_date >= ? AND effective_date <= ?", start, end).
		Order("effective_date ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	userIDs := make([]snowflake.ID, 0, len(entries))
	chapterIDs := make([]snowflake.ID, 0, len(entries))
	for _, entry := range entries {
		userIDs = append(userIDs, entry.UserID)
		if entry.ChapterID != nil {
			chapterIDs = append(chapterIDs, *entry.ChapterID)
		}
	}
	profiles, err := s.names.ProfileDetails(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	chapters, err := s.names.ChapterNames(ctx, chapterIDs)
	if err != nil {
		return nil, err
	}

	data := &metricsData{Totals: make(map[metricdomain.Category]int64, 5)}
	for _, category := range metricdomain.Categories() {
		data.Totals[category] = 0
	}
	for _, entry := range entries {
		data.Totals[entry.Category] += entry.Value
		data.GrandTotal += entry.Value

		profile := profiles[entry.UserID]
		row := metricDetailRow{
			Date:         entry.EffectiveDate,
			Category:     string(entry.Category),
			Value:        entry.Value,
			MemberName:   orPlaceholder(profile.FullName),
			BusinessName: orPlaceholder(profile.BusinessName),
			ChapterName:  lookup(chapters, entry.ChapterID),
		}
		data.Details = append(data.Details, row)
	}
	return data, nil
}

func (s *Service) gatherTrades(ctx context.Context, start, end time.Time) (*tradesData, error) {
	var trades []tradedomain.Trade
	err := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at <= ?", start, end).
		Order("created_at ASC, id ASC").
		Find(&trades).Error
	if err != nil {
		return nil, err
	}

	profileIDs := make([]snowflake.ID, 0, len(trades)*3)
	chapterIDs := make([]snowflake.ID, 0, len(trades))
	for _, trade := range trades {
		profileIDs = append(profileIDs, trade.DeclarerID)
		if trade.SourceMemberID != nil {
			profileIDs = append(profileIDs, *trade.SourceMemberID)
		}
		if trade.BeneficiaryMemberID != nil {
			profileIDs = append(profileIDs, *trade.BeneficiaryMemberID)
		}
		if trade.ChapterID != nil {
			chapterIDs = append(chapterIDs, *trade.ChapterID)
		}
	}
	profiles, err := s.names.ProfileNames(ctx, profileIDs)
	if err != nil {
		return nil, err
	}
	chapters, err := s.names.ChapterNames(ctx, chapterIDs)
	if err != nil {
		return nil, err
	}

	data := &tradesData{
		Count:          int64(len(trades)),
		CountsByStatus: make(map[tradedomain.Status]int64),
	}
	for _, trade := range trades {
		data.TotalCents += trade.AmountCents
		data.CountsByStatus[trade.Status]++
		data.Details = append(data.Details, tradeDetailRow{
			Date:            trade.CreatedAt,
			AmountCents:     trade.AmountCents,
			Status:          string(trade.Status),
			DeclarerName:    lookupID(profiles, trade.DeclarerID),
			SourceName:      lookup(profiles, trade.SourceMemberID),
			BeneficiaryName: lookup(profiles, trade.BeneficiaryMemberID),
			ChapterName:     lookup(chapters, trade.ChapterID),
			Description:     trade.Description,
		})
	}
	if data.Count > 0 {
		data.AverageCents = money.AverageCents(data.TotalCents, data.Count)
	}
	return data, nil
}

func (s *Service) gatherFinancial(ctx context.Context, start, end time.Time) (*financialData, error) {
	data := &financialData{}
	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount_cents), 0) AS revenue_cents
		 FROM trades
		 WHERE status = ? AND created_at >= ? AND created_at <= ?`,
		tradedomain.StatusPaid, start, end,
	).Scan(&data.RevenueCents).Error
	if err != nil {
		return nil, err
	}

	type invoiceBucket struct {
		Paid  bool
		Total int64
		Count int64
	}
	var buckets []invoiceBucket
	err = s.db.WithContext(ctx).Raw(
		`SELECT (paid_at IS NOT NULL) AS paid,
		        COALESCE(SUM(amount_cents), 0) AS total,
		        COUNT(*) AS count
		 FROM invoices
		 WHERE issued_at >= ? AND issued_at <= ?
		 GROUP BY (paid_at IS NOT NULL)`,
		start, end,
	).Scan(&buckets).Error
	if err != nil {
		return nil, err
	}
	for _, bucket := range buckets {
		if bucket.Paid {
			data.InvoicePaidCents = bucket.Total
			data.InvoicePaidCount = bucket.Count
		} else {
			data.InvoicePendingCents = bucket.Total
			data.InvoicePendingCount = bucket.Count
		}
	}
	return data, nil
}

func (s *Service) gatherMembers(ctx context.Context, start, end time.Time) (*membersData, error) {
	type roleCount struct {
		Role  string
		Count int64
	}
	var roleCounts []roleCount
	err := s.db.WithContext(ctx).Raw(
		`SELECT role, COUNT(*) AS count FROM profiles GROUP BY role`,
	).Scan(&roleCounts).Error
	if err != nil {
		return nil, err
	}

	type directoryRow struct {
		FullName     string
		BusinessName *string
		Email        string
		Role         string
		ChapterID    *snowflake.ID
		CreatedAt    time.Time
	}
	var rows []directoryRow
	err = s.db.WithContext(ctx).Raw(
		`SELECT full_name, business_name, email, role, chapter_id, created_at
		 FROM profiles
		 WHERE created_at >= ? AND created_at <= ?
		 ORDER BY created_at ASC, id ASC`,
		start, end,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	chapterIDs := make([]snowflake.ID, 0, len(rows))
	for _, row := range rows {
		if row.ChapterID != nil {
			chapterIDs = append(chapterIDs, *row.ChapterID)
		}
	}
	chapters, err := s.names.ChapterNames(ctx, chapterIDs)
	if err != nil {
		return nil, err
	}

	data := &membersData{CountsByRole: make(map[string]int64, len(roleCounts))}
	for _, rc := range roleCounts {
		data.CountsByRole[rc.Role] = rc.Count
	}
	for _, row := range rows {
		business := namePlaceholder
		if row.BusinessName != nil && *row.BusinessName != "" {
			business = *row.BusinessName
		}
		data.Directory = append(data.Directory, memberRow{
			FullName:     row.FullName,
			BusinessName: business,
			Email:        row.Email,
			Role:         row.Role,
			ChapterName:  lookup(chapters, row.ChapterID),
			JoinedAt:     row.CreatedAt,
		})
	}
	return data, nil
}

// gatherChapters is always current, never range-filtered.
func (s *Service) gatherChapters(ctx context.Context) (*chaptersData, error) {
	type overviewRow struct {
		Name        string
		LeaderID    *snowflake.ID
		MemberCount int64
		CreatedAt   time.Time
	}
	var rows []overviewRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT c.name, c.leader_id, c.created_at,
		        (SELECT COUNT(*) FROM profiles p WHERE p.chapter_id = c.id AND p.is_active = TRUE) AS member_count
		 FROM chapters c
		 ORDER BY c.name ASC`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	leaderIDs := make([]snowflake.ID, 0, len(rows))
	for _, row := range rows {
		if row.LeaderID != nil {
			leaderIDs = append(leaderIDs, *row.LeaderID)
		}
	}
	leaders, err := s.names.ProfileNames(ctx, leaderIDs)
	if err != nil {
		return nil, err
	}

	data := &chaptersData{}
	for _, row := range rows {
		data.Rows = append(data.Rows, chapterRow{
			Name:        row.Name,
			LeaderName:  lookup(leaders, row.LeaderID),
			MemberCount: row.MemberCount,
			CreatedAt:   row.CreatedAt,
		})
	}
	return data, nil
}

func orPlaceholder(s string) string {
	if s == "" {
		return namePlaceholder
	}
	return s
}
