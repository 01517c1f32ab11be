package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/plantmetrics/plant/internal/audit/domain"
	"github.com/plantmetrics/plant/internal/clock"
	"github.com/plantmetrics/plant/internal/config"
	invoicedomain "github.com/plantmetrics/plant/internal/invoice/domain"
	"github.com/plantmetrics/plant/internal/payment/adapters"
	paymentdomain "github.com/plantmetrics/plant/internal/payment/domain"
	tradedomain "github.com/plantmetrics/plant/internal/trade/domain"
	"github.com/plantmetrics/plant/pkg/money"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Adapters   *adapters.Registry
	TradeRepo  tradedomain.Repository
	InvoiceSvc invoicedomain.Service
	AuditSvc   auditdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	provider   string
	adapter    paymentdomain.PaymentAdapter
	adapterErr error
	tradeRepo  tradedomain.Repository
	invoiceSvc invoicedomain.Service
	auditSvc   auditdomain.Service
}

func NewService(p Params) paymentdomain.Service {
	adapter, err := p.Adapters.NewAdapter(p.Cfg.Payment.Provider, paymentdomain.AdapterConfig{
		BaseURL:        p.Cfg.Payment.BaseURL,
		ConsumerKey:    p.Cfg.Payment.ConsumerKey,
		ConsumerSecret: p.Cfg.Payment.Secret,
		ShortCode:      p.Cfg.Payment.ShortCode,
		Passkey:        p.Cfg.Payment.Passkey,
		CallbackURL:    p.Cfg.Payment.CallbackURL,
	})
	if err != nil {
		p.Log.Warn("payment adapter unavailable",
			zap.String("provider", p.Cfg.Payment.Provider),
			zap.Error(err),
		)
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		clock:      p.Clock,
		provider:   p.Cfg.Payment.Provider,
		adapter:    adapter,
		adapterErr: err,
		tradeRepo:  p.TradeRepo,
		invoiceSvc: p.InvoiceSvc,
		auditSvc:   p.AuditSvc,
	}
}

func (s *Service) Initiate(ctx context.Context, input paymentdomain.InitiateInput) (paymentdomain.InitiateResult, error) {
	if s.adapter == nil {
		if s.adapterErr != nil {
			return paymentdomain.InitiateResult{}, s.adapterErr
		}
		return paymentdomain.InitiateResult{}, paymentdomain.ErrProviderNotFound
	}

	trade, err := s.tradeRepo.FindByID(ctx, s.db, input.TradeID)
	if err != nil {
		return paymentdomain.InitiateResult{}, err
	}
	if trade == nil {
		return paymentdomain.InitiateResult{}, paymentdomain.ErrTradeNotFound
	}
	if trade.Status != tradedomain.StatusPending {
		return paymentdomain.InitiateResult{}, paymentdomain.ErrTradeNotPayable
	}

	ack, err := s.adapter.Initiate(ctx, paymentdomain.InitiateRequest{
		PhoneNumber: input.PhoneNumber,
		AmountCents: trade.AmountCents,
		Description: trade.Description,
		Reference:   trade.ID.String(),
	})
	if err != nil {
		// The trade stays pending; initiation failures never leave it
		// half-transitioned.
		s.log.Warn("payment initiation failed",
			zap.String("trade_id", trade.ID.String()),
			zap.Error(err),
		)
		return paymentdomain.InitiateResult{}, err
	}

	moved, err := s.tradeRepo.SetPaymentRef(ctx, s.db, trade.ID, ack.CheckoutToken, tradedomain.StatusInvoiced)
	if err != nil {
		return paymentdomain.InitiateResult{}, err
	}
	if !moved {
		// A concurrent settlement or cancellation won the race. The token is
		// still valid for the callback to find, so keep it in metadata.
		if err := s.tradeRepo.MergeMetadata(ctx, s.db, trade.ID, map[string]any{
			"late_checkout_token": ack.CheckoutToken,
		}); err != nil {
			s.log.Warn("recording late checkout token failed", zap.Error(err))
		}
	}

	tradeID := trade.ID.String()
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeSystem,
		Action:     "payment.initiate",
		TargetType: "trade",
		TargetID:   &tradeID,
		Metadata: map[string]any{
			"provider":       s.provider,
			"checkout_token": ack.CheckoutToken,
			"amount":         money.FormatCents(trade.AmountCents),
		},
	})

	return paymentdomain.InitiateResult{CheckoutToken: ack.CheckoutToken}, nil
}

func (s *Service) HandleCallback(ctx context.Context, payload []byte) error {
	if s.adapter == nil {
		return paymentdomain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	event, err := s.adapter.ParseCallback(ctx, payload)
	if err != nil {
		return err
	}
	if event == nil || event.CheckoutToken == "" {
		return paymentdomain.ErrInvalidPayload
	}

	trade, err := s.tradeRepo.FindByPaymentRef(ctx, s.db, event.CheckoutToken)
	if err != nil {
		return err
	}
	if trade == nil {
		s.log.Warn("callback for unknown checkout token",
			zap.String("checkout_token", event.CheckoutToken),
		)
		return paymentdomain.ErrUnknownToken
	}

	if event.Succeeded() {
		return s.settle(ctx, trade, event)
	}
	return s.fail(ctx, trade, event)
}

func (s *Service) settle(ctx context.Context, trade *tradedomain.Trade, event *paymentdomain.CallbackEvent) error {
	if trade.Status == tradedomain.StatusPaid {
		// Replayed confirmation. Nothing to mutate, nothing to audit.
		return nil
	}

	// The invoice is issued on demand when settlement beats the grace-window
	// sweep. Generate is idempotent.
	if _, err := s.invoiceSvc.Generate(ctx, trade.ID); err != nil &&
		!errors.Is(err, invoicedomain.ErrTradeNotEligible) {
		return err
	}

	now := s.clock.Now()
	result := s.db.WithContext(ctx).Exec(
		`UPDATE invoices SET paid_at = ?, updated_at = ? WHERE trade_id = ? AND paid_at IS NULL`,
		now, now, trade.ID,
	)
	if result.Error != nil {
		return result.Error
	}

	moved, err := s.tradeRepo.TransitionStatus(ctx, s.db, trade.ID,
		[]tradedomain.Status{tradedomain.StatusPending, tradedomain.StatusInvoiced},
		tradedomain.StatusPaid)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}

	metadata := map[string]any{
		"receipt_number": event.ReceiptNumber,
		"payer_phone":    event.PayerPhone,
	}
	if event.AmountCents > 0 {
		metadata["confirmed_amount"] = money.FormatCents(event.AmountCents)
	}
	if event.TransactionAt != nil {
		metadata["transaction_at"] = event.TransactionAt.Format("2006-01-02T15:04:05Z07:00")
	}
	if err := s.tradeRepo.MergeMetadata(ctx, s.db, trade.ID, metadata); err != nil {
		s.log.Warn("recording settlement metadata failed", zap.Error(err))
	}

	tradeID := trade.ID.String()
	return s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeSystem,
		Action:     "payment.confirm",
		TargetType: "trade",
		TargetID:   &tradeID,
		Metadata:   metadata,
	})
}

func (s *Service) fail(ctx context.Context, trade *tradedomain.Trade, event *paymentdomain.CallbackEvent) error {
	moved, err := s.tradeRepo.TransitionStatus(ctx, s.db, trade.ID,
		[]tradedomain.Status{tradedomain.StatusPending, tradedomain.StatusInvoiced},
		tradedomain.StatusFailed)
	if err != nil {
		return err
	}
	if !moved {
		// Settled or already failed. Failures never claw back a paid trade.
		return nil
	}

	metadata := map[string]any{
		"result_code":    event.ResultCode,
		"failure_reason": event.ResultDesc,
	}
	if err := s.tradeRepo.MergeMetadata(ctx, s.db, trade.ID, metadata); err != nil {
		s.log.Warn("recording failure metadata failed", zap.Error(err))
	}

	tradeID := trade.ID.String()
	return s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeSystem,
		Action:     "payment.fail",
		TargetType: "trade",
		TargetID:   &tradeID,
		Metadata:   metadata,
	})
}
