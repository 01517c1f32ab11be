package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/plantmetrics/plant/internal/audit/domain"
	"github.com/plantmetrics/plant/internal/clock"
	"github.com/plantmetrics/plant/internal/invoice/domain"
	"github.com/plantmetrics/plant/internal/invoice/render"
	"github.com/plantmetrics/plant/internal/mail"
	tradedomain "github.com/plantmetrics/plant/internal/trade/domain"
	"github.com/plantmetrics/plant/pkg/money"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	TradeRepo tradedomain.Repository
	AuditSvc  auditdomain.Service
	Mailer    mail.Sender
	Renderer  render.Renderer
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	tradeRepo tradedomain.Repository
	auditSvc  auditdomain.Service
	mailer    mail.Sender
	renderer  render.Renderer
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("invoice.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		tradeRepo: p.TradeRepo,
		auditSvc:  p.AuditSvc,
		mailer:    p.Mailer,
		renderer:  p.Renderer,
	}
}

func (s *Service) Generate(ctx context.Context, tradeID snowflake.ID) (domain.GenerateResult, error) {
	trade, err := s.tradeRepo.FindByID(ctx, s.db, tradeID)
	if err != nil {
		return domain.GenerateResult{}, err
	}
	if trade == nil {
		return domain.GenerateResult{}, domain.ErrTradeNotFound
	}

	if existing, err := s.findByTradeID(ctx, tradeID); err != nil {
		return domain.GenerateResult{}, err
	} else if existing != nil {
		return domain.GenerateResult{Invoice: *existing, Existed: true}, nil
	}

	switch trade.Status {
	case tradedomain.StatusPending:
		// Issuing an invoice moves the trade out of pending. The update is
		// conditional; losing the race to a settlement is fine because the
		// invoice row below is still valid for the paid trade.
		if _, err := s.tradeRepo.TransitionStatus(ctx, s.db, tradeID,
			[]tradedomain.Status{tradedomain.StatusPending}, tradedomain.StatusInvoiced); err != nil {
			return domain.GenerateResult{}, err
		}
	case tradedomain.StatusInvoiced:
	default:
		return domain.GenerateResult{}, domain.ErrTradeNotEligible
	}

	now := s.clock.Now()
	id := s.genID.Generate()
	number := fmt.Sprintf("INV-%d-%d", now.Year(), id)
	fileName := number + ".html"
	invoice := domain.Invoice{
		ID:            id,
		TradeID:       tradeID,
		InvoiceNumber: number,
		AmountCents:   trade.AmountCents,
		FileName:      &fileName,
		IssuedAt:      now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.db.WithContext(ctx).Create(&invoice).Error; err != nil {
		// A concurrent writer may have issued the invoice first; the
		// unique trade index makes that loser re-read instead of failing.
		existing, findErr := s.findByTradeID(ctx, tradeID)
		if findErr == nil && existing != nil {
			return domain.GenerateResult{Invoice: *existing, Existed: true}, nil
		}
		return domain.GenerateResult{}, err
	}

	document, err := s.renderDocument(ctx, invoice, *trade)
	if err != nil {
		s.log.Warn("invoice render failed", zap.String("invoice", number), zap.Error(err))
		document = ""
	}

	targetID := invoice.ID.String()
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeSystem,
		Action:     "invoice.generate",
		TargetType: "invoice",
		TargetID:   &targetID,
		Metadata: map[string]any{
			"trade_id":       tradeID.String(),
			"invoice_number": number,
			"amount":         money.FormatCents(invoice.AmountCents),
		},
	})

	return domain.GenerateResult{Invoice: invoice, Document: document}, nil
}

func (s *Service) GetByTradeID(ctx context.Context, tradeID snowflake.ID) (domain.Invoice, error) {
	invoice, err := s.findByTradeID(ctx, tradeID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice == nil {
		return domain.Invoice{}, domain.ErrNoInvoice
	}
	return *invoice, nil
}

func (s *Service) MarkPaid(ctx context.Context, tradeID snowflake.ID, actor domain.Actor) error {
	invoice, err := s.findByTradeID(ctx, tradeID)
	if err != nil {
		return err
	}
	if invoice == nil {
		return domain.ErrNoInvoice
	}

	now := s.clock.Now()
	result := s.db.WithContext(ctx).Exec(
		`UPDATE invoices SET paid_at = ?, updated_at = ? WHERE trade_id = ? AND paid_at IS NULL`,
		now, now, tradeID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Already reconciled. Replays must not double-audit.
		return nil
	}

	if _, err := s.tradeRepo.TransitionStatus(ctx, s.db, tradeID,
		[]tradedomain.Status{tradedomain.StatusPending, tradedomain.StatusInvoiced},
		tradedomain.StatusPaid); err != nil {
		return err
	}

	actorID := actor.ProfileID.String()
	targetID := invoice.ID.String()
	entry := auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeUser,
		ActorID:    &actorID,
		Action:     "invoice.mark_paid",
		TargetType: "invoice",
		TargetID:   &targetID,
		Metadata: map[string]any{
			"trade_id":       tradeID.String(),
			"invoice_number": invoice.InvoiceNumber,
		},
	}
	if actor.ProfileID == 0 {
		entry.ActorType = auditdomain.ActorTypeSystem
		entry.ActorID = nil
	}
	return s.auditSvc.Record(ctx, entry)
}

func (s *Service) Resend(ctx context.Context, tradeID snowflake.ID, actor domain.Actor) error {
	invoice, err := s.findByTradeID(ctx, tradeID)
	if err != nil {
		return err
	}
	if invoice == nil {
		return domain.ErrNoInvoice
	}
	trade, err := s.tradeRepo.FindByID(ctx, s.db, tradeID)
	if err != nil {
		return err
	}
	if trade == nil {
		return domain.ErrTradeNotFound
	}

	declarer, err := s.loadDeclarer(ctx, trade.DeclarerID)
	if err != nil {
		return err
	}

	delivery := "sent"
	document, err := s.renderDocument(ctx, *invoice, *trade)
	if err == nil {
		err = s.mailer.Send(ctx, mail.Message{
			To:      declarer.Email,
			Subject: "Invoice " + invoice.InvoiceNumber,
			Body:    document,
			HTML:    true,
		})
	}
	if err != nil {
		delivery = "failed"
		s.log.Warn("invoice resend failed",
			zap.String("invoice", invoice.InvoiceNumber),
			zap.Error(err),
		)
	}

	// The resend attempt is audited whether or not delivery succeeded.
	actorID := actor.ProfileID.String()
	targetID := invoice.ID.String()
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeUser,
		ActorID:    &actorID,
		Action:     "invoice.resend",
		TargetType: "invoice",
		TargetID:   &targetID,
		Metadata: map[string]any{
			"trade_id":       tradeID.String(),
			"invoice_number": invoice.InvoiceNumber,
			"recipient":      declarer.Email,
			"delivery":       delivery,
		},
	})

	if err != nil {
		return err
	}
	return nil
}

func (s *Service) findByTradeID(ctx context.Context, tradeID snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := s.db.WithContext(ctx).
		Where("trade_id = ?", tradeID).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

type declarerRow struct {
	FullName     string
	BusinessName string
	Email        string
}

func (s *Service) loadDeclarer(ctx context.Context, declarerID snowflake.ID) (declarerRow, error) {
	var row declarerRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT full_name, COALESCE(business_name, '') AS business_name, email
		 FROM profiles WHERE id = ?`,
		declarerID,
	).Scan(&row).Error
	if err != nil {
		return declarerRow{}, err
	}
	if row.Email == "" {
		return declarerRow{}, domain.ErrTradeNotFound
	}
	return row, nil
}

func (s *Service) renderDocument(ctx context.Context, invoice domain.Invoice, trade tradedomain.Trade) (string, error) {
	declarer, err := s.loadDeclarer(ctx, trade.DeclarerID)
	if err != nil {
		return "", err
	}
	chapterName := ""
	if trade.ChapterID != nil {
		_ = s.db.WithContext(ctx).Raw(
			`SELECT name FROM chapters WHERE id = ?`, *trade.ChapterID,
		).Scan(&chapterName).Error
	}
	return s.renderer.RenderHTML(render.RenderInput{
		Invoice: render.InvoiceView{
			Number:      invoice.InvoiceNumber,
			AmountCents: invoice.AmountCents,
			IssuedAt:    invoice.IssuedAt,
			PaidAt:      invoice.PaidAt,
		},
		Member: render.MemberView{
			FullName:     declarer.FullName,
			BusinessName: declarer.BusinessName,
			Email:        declarer.Email,
		},
		Trade: render.TradeView{
			Description: trade.Description,
			ChapterName: chapterName,
			DeclaredAt:  trade.CreatedAt,
		},
	})
}
