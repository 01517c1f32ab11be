package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/plantmetrics/plant/internal/trade/domain"
)

type repo struct{}

// Provide constructs the gorm-backed trade repository.
func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, trade *domain.Trade) error {
	return db.WithContext(ctx).Create(trade).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Trade, error) {
	var trade domain.Trade
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&trade).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trade, nil
}

func (r *repo) FindByPaymentRef(ctx context.Context, db *gorm.DB, paymentRef string) (*domain.Trade, error) {
	var trade domain.Trade
	err := db.WithContext(ctx).
		Where("payment_ref = ?", paymentRef).
		First(&trade).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trade, nil
}

// joinRow is the flat shape produced by the list query. mapDetail is the
// single place join rows become typed nested objects.
type joinRow struct {
	domain.Trade
	DeclarerName        string
	DeclarerBusiness    string
	SourceName          *string
	SourceBusiness      *string
	BeneficiaryName     *string
	BeneficiaryBusiness *string
	ChapterName         *string
}

func mapDetail(row joinRow) domain.Detail {
	detail := domain.Detail{
		Trade: row.Trade,
		Declarer: domain.Party{
			ID:           row.Trade.DeclarerID,
			FullName:     row.DeclarerName,
			BusinessName: row.DeclarerBusiness,
		},
	}
	if row.Trade.SourceMemberID != nil && row.SourceName != nil {
		detail.Source = &domain.Party{
			ID:       *row.Trade.SourceMemberID,
			FullName: *row.SourceName,
		}
		if row.SourceBusiness != nil {
			detail.Source.BusinessName = *row.SourceBusiness
		}
	}
	if row.Trade.BeneficiaryMemberID != nil && row.BeneficiaryName != nil {
		detail.Beneficiary = &domain.Party{
			ID:       *row.Trade.BeneficiaryMemberID,
			FullName: *row.BeneficiaryName,
		}
		if row.BeneficiaryBusiness != nil {
			detail.Beneficiary.BusinessName = *row.BeneficiaryBusiness
		}
	}
	if row.ChapterName != nil {
		detail.ChapterName = *row.ChapterName
	}
	return detail
}

const listSelect = `SELECT t.*,
       d.full_name AS declarer_name,
       COALESCE(d.business_name, '') AS declarer_business,
       sm.full_name AS source_name,
       sm.business_name AS source_business,
       bm.full_name AS beneficiary_name,
       bm.business_name AS beneficiary_business,
       c.name AS chapter_name
  FROM trades t
  JOIN profiles d ON d.id = t.declarer_id
  LEFT JOIN profiles sm ON sm.id = t.source_member_id
  LEFT JOIN profiles bm ON bm.id = t.beneficiary_member_id
  LEFT JOIN chapters c ON c.id = t.chapter_id`

func (r *repo) FindDetailByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Detail, error) {
	var rows []joinRow
	err := db.WithContext(ctx).Raw(listSelect+" WHERE t.id = ?", id).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	detail := mapDetail(rows[0])
	return &detail, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Detail, int64, error) {
	countQuery := db.WithContext(ctx).Model(&domain.Trade{})
	where := ""
	args := []any{}
	appendCond := func(cond string, value any) {
		if where == "" {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}
		args = append(args, value)
	}

	if filter.DeclarerID != 0 {
		appendCond("t.declarer_id = ?", filter.DeclarerID)
		countQuery = countQuery.Where("declarer_id = ?", filter.DeclarerID)
	}
	if filter.ChapterID != 0 {
		appendCond("t.chapter_id = ?", filter.ChapterID)
		countQuery = countQuery.Where("chapter_id = ?", filter.ChapterID)
	}
	if filter.Status != "" {
		appendCond("t.status = ?", filter.Status)
		countQuery = countQuery.Where("status = ?", filter.Status)
	}

	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.AfterID != 0 {
		appendCond("t.id > ?", filter.AfterID)
	}

	query := listSelect + where + " ORDER BY t.id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []joinRow
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, 0, err
	}

	details := make([]domain.Detail, 0, len(rows))
	for _, row := range rows {
		details = append(details, mapDetail(row))
	}
	return details, total, nil
}

func (r *repo) TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []domain.Status, to domain.Status) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE trades SET status = ?, updated_at = ? WHERE id = ? AND status IN ?`,
		to, time.Now().UTC(), id, from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) SetPaymentRef(ctx context.Context, db *gorm.DB, id snowflake.ID, paymentRef string, to domain.Status) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE trades SET payment_ref = ?, status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		paymentRef, to, time.Now().UTC(), id, domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MergeMetadata(ctx context.Context, db *gorm.DB, id snowflake.ID, metadata map[string]any) error {
	if len(metadata) == 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var trade domain.Trade
		err := tx.WithContext(ctx).
			Where("id = ?", id).
			First(&trade).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrTradeNotFound
			}
			return err
		}
		if trade.Metadata == nil {
			trade.Metadata = datatypes.JSONMap{}
		}
		for key, value := range metadata {
			trade.Metadata[key] = value
		}
		return tx.WithContext(ctx).Exec(
			`UPDATE trades SET metadata = ?, updated_at = ? WHERE id = ?`,
			trade.Metadata, time.Now().UTC(), id,
		).Error
	})
}

func (r *repo) ListStuckInvoiced(ctx context.Context, db *gorm.DB, filter domain.StuckFilter) ([]domain.Trade, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	var trades []domain.Trade
	err := db.WithContext(ctx).Raw(
		`SELECT t.*
		 FROM trades t
		 WHERE t.status = ?
		   AND t.updated_at < ?
		   AND NOT EXISTS (SELECT 1 FROM invoices i WHERE i.trade_id = t.id)
		 ORDER BY t.updated_at ASC
		 LIMIT ?`,
		domain.StatusInvoiced, filter.Before, limit,
	).Scan(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}
