package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/plantmetrics/plant/internal/clock"
	"github.com/plantmetrics/plant/internal/trade/domain"
	"github.com/plantmetrics/plant/pkg/db/pagination"
	"github.com/plantmetrics/plant/pkg/money"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("trade.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Declare(ctx context.Context, req domain.DeclareRequest) (domain.Trade, error) {
	amountCents, err := money.ParseCents(strings.TrimSpace(req.Amount))
	if err != nil || amountCents <= 0 {
		return domain.Trade{}, domain.ErrInvalidAmount
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return domain.Trade{}, domain.ErrEmptyDescription
	}
	if err := s.checkCounterpart(ctx, req.ChapterID, req.SourceMemberID); err != nil {
		return domain.Trade{}, err
	}
	if err := s.checkCounterpart(ctx, req.ChapterID, req.BeneficiaryMemberID); err != nil {
		return domain.Trade{}, err
	}

	now := s.clock.Now()
	trade := domain.Trade{
		ID:                  s.genID.Generate(),
		DeclarerID:          req.DeclarerID,
		ChapterID:           req.ChapterID,
		AmountCents:         amountCents,
		Description:         description,
		SourceMemberID:      req.SourceMemberID,
		BeneficiaryMemberID: req.BeneficiaryMemberID,
		Status:              domain.StatusPending,
		Metadata:            datatypes.JSONMap{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.Insert(ctx, s.db, &trade); err != nil {
		return domain.Trade{}, err
	}

	s.log.Info("trade declared",
		zap.String("trade_id", trade.ID.String()),
		zap.String("declarer_id", trade.DeclarerID.String()),
		zap.Int64("amount_cents", amountCents),
	)
	return trade, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Detail, error) {
	detail, err := s.repo.FindDetailByID(ctx, s.db, id)
	if err != nil {
		return domain.Detail{}, err
	}
	if detail == nil {
		return domain.Detail{}, domain.ErrTradeNotFound
	}
	return *detail, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTradesRequest) (domain.ListTradesResponse, error) {
	page := req.Pagination.Normalize()
	filter := domain.ListFilter{
		DeclarerID: req.DeclarerID,
		ChapterID:  req.ChapterID,
		Status:     req.Status,
		AfterID:    snowflake.ID(pagination.DecodeToken(page.PageToken)),
		Limit:      page.PageSize,
	}
	details, total, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListTradesResponse{}, err
	}

	resp := domain.ListTradesResponse{Trades: details}
	resp.TotalCount = total
	if len(details) == page.PageSize {
		resp.NextPageToken = pagination.EncodeToken(int64(details[len(details)-1].ID))
	}
	return resp, nil
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID) error {
	trade, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if trade == nil {
		return domain.ErrTradeNotFound
	}

	moved, err := s.repo.TransitionStatus(ctx, s.db, id,
		[]domain.Status{domain.StatusPending}, domain.StatusCancelled)
	if err != nil {
		return err
	}
	if !moved {
		return domain.ErrNotCancellable
	}
	return nil
}

// checkCounterpart verifies an optional counterpart reference points at a
// profile in the declaring member's chapter.
func (s *Service) checkCounterpart(ctx context.Context, chapterID *snowflake.ID, memberID *snowflake.ID) error {
	if memberID == nil {
		return nil
	}
	var foundChapter *snowflake.ID
	var count int64
	row := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM profiles WHERE id = ?`, *memberID,
	)
	if err := row.Scan(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrCounterpartUnknown
	}
	if chapterID == nil {
		return nil
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT chapter_id FROM profiles WHERE id = ?`, *memberID,
	).Scan(&foundChapter).Error; err != nil {
		return err
	}
	if foundChapter == nil || *foundChapter != *chapterID {
		return domain.ErrCounterpartUnknown
	}
	return nil
}
