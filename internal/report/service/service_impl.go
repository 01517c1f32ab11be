package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/plantmetrics/plant/internal/audit/domain"
	"github.com/plantmetrics/plant/internal/clock"
	"github.com/plantmetrics/plant/internal/report/domain"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	auditSvc auditdomain.Service
	names    *nameResolver
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("report.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
		names:    newNameResolver(p.DB),
	}
}

func (s *Service) Generate(ctx context.Context, req domain.GenerateRequest) (domain.Artifact, error) {
	if !req.Type.Valid() {
		return domain.Artifact{}, domain.ErrInvalidType
	}
	if !req.Format.Valid() {
		return domain.Artifact{}, domain.ErrInvalidFormat
	}
	if req.Start.IsZero() || req.End.IsZero() || req.End.Before(req.Start) {
		return domain.Artifact{}, domain.ErrInvalidRange
	}

	data, err := s.gather(ctx, req)
	if err != nil {
		// No partial artifacts and no history row on failure.
		return domain.Artifact{}, err
	}

	name := fileName(req.Type, req.Format, req.Start, req.End)
	payload, err := render(req.Format, req.Type.Title()+" Report", buildSheets(data, req))
	if err != nil {
		return domain.Artifact{}, err
	}

	history := domain.History{
		ID:          s.genID.Generate(),
		ReportType:  req.Type,
		PeriodLabel: periodLabel(req.Start, req.End),
		Format:      req.Format,
		FileName:    name,
		RangeStart:  req.Start,
		RangeEnd:    req.End,
		GeneratedBy: req.GeneratedBy,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&history).Error; err != nil {
		return domain.Artifact{}, err
	}

	actorID := req.GeneratedBy.String()
	targetID := history.ID.String()
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeUser,
		ActorID:    &actorID,
		Action:     "report.generate",
		TargetType: "report",
		TargetID:   &targetID,
		Metadata: map[string]any{
			"report_type": string(req.Type),
			"format":      string(req.Format),
			"file_name":   name,
			"period":      history.PeriodLabel,
		},
	})

	s.log.Info("report generated",
		zap.String("report_type", string(req.Type)),
		zap.String("file_name", name),
		zap.Int("bytes", len(payload)),
	)

	return domain.Artifact{
		FileName:    name,
		ContentType: req.Format.ContentType(),
		Data:        payload,
	}, nil
}

func (s *Service) ListHistory(ctx context.Context, filter domain.HistoryFilter) ([]domain.History, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Order("id DESC").Limit(limit)
	if filter.Type != "" {
		query = query.Where("report_type = ?", filter.Type)
	}
	if filter.AfterID != 0 {
		query = query.Where("id < ?", filter.AfterID)
	}
	var rows []domain.History
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
