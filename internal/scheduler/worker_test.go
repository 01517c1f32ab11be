package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/plantmetrics/plant/internal/clock"
	invoicedomain "github.com/plantmetrics/plant/internal/invoice/domain"
	notificationdomain "github.com/plantmetrics/plant/internal/notification/domain"
	tradedomain "github.com/plantmetrics/plant/internal/trade/domain"
)

type fakeTradeRepo struct {
	tradedomain.Repository

	stuck      []tradedomain.Trade
	stuckErr   error
	lastFilter tradedomain.StuckFilter
}

func (f *fakeTradeRepo) ListStuckInvoiced(_ context.Context, _ *gorm.DB, filter tradedomain.StuckFilter) ([]tradedomain.Trade, error) {
	f.lastFilter = filter
	return f.stuck, f.stuckErr
}

type fakeInvoiceService struct {
	generated []snowflake.ID
	existed   map[snowflake.ID]bool
	failFor   map[snowflake.ID]error
}

func (f *fakeInvoiceService) Generate(_ context.Context, tradeID snowflake.ID) (invoicedomain.GenerateResult, error) {
	if err := f.failFor[tradeID]; err != nil {
		return invoicedomain.GenerateResult{}, err
	}
	f.generated = append(f.generated, tradeID)
	return invoicedomain.GenerateResult{
		Invoice: invoicedomain.Invoice{TradeID: tradeID, InvoiceNumber: "INV-2025-1"},
		Existed: f.existed[tradeID],
	}, nil
}

func (f *fakeInvoiceService) GetByTradeID(context.Context, snowflake.ID) (invoicedomain.Invoice, error) {
	return invoicedomain.Invoice{}, invoicedomain.ErrNoInvoice
}

func (f *fakeInvoiceService) MarkPaid(context.Context, snowflake.ID, invoicedomain.Actor) error {
	return nil
}

func (f *fakeInvoiceService) Resend(context.Context, snowflake.ID, invoicedomain.Actor) error {
	return nil
}

type fakeNotificationService struct {
	dispatched  int
	dispatchErr error
	lastNow     time.Time
}

func (f *fakeNotificationService) Broadcast(context.Context, notificationdomain.BroadcastRequest) (notificationdomain.BroadcastResult, error) {
	return notificationdomain.BroadcastResult{}, nil
}

func (f *fakeNotificationService) DispatchScheduled(_ context.Context, now time.Time) (int, error) {
	f.lastNow = now
	return f.dispatched, f.dispatchErr
}

func (f *fakeNotificationService) List(context.Context, notificationdomain.ListFilter) ([]notificationdomain.History, error) {
	return nil, nil
}

func newTestWorker(repo *fakeTradeRepo, invoices *fakeInvoiceService, notifications *fakeNotificationService) *Worker {
	return &Worker{
		log:             zap.NewNop(),
		clock:           clock.FixedClock{At: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		tradeRepo:       repo,
		invoiceSvc:      invoices,
		notificationSvc: notifications,
		cfg:             Config{}.withDefaults(),
	}
}

func TestRunOnceSweepsStuckTrades(t *testing.T) {
	repo := &fakeTradeRepo{stuck: []tradedomain.Trade{{ID: 1}, {ID: 2}}}
	invoices := &fakeInvoiceService{}
	notifications := &fakeNotificationService{dispatched: 3}
	worker := newTestWorker(repo, invoices, notifications)

	if err := worker.RunOnce(); err != nil {
		t.Fatalf("run once: %v", err)
	}

	if len(invoices.generated) != 2 {
		t.Fatalf("expected 2 invoices generated, got %d", len(invoices.generated))
	}
	wantCutoff := worker.clock.Now().Add(-worker.cfg.InvoiceGraceWindow)
	if !repo.lastFilter.Before.Equal(wantCutoff) {
		t.Fatalf("cutoff = %v, want %v", repo.lastFilter.Before, wantCutoff)
	}
	if repo.lastFilter.Limit != worker.cfg.BatchSize {
		t.Fatalf("batch limit = %d, want %d", repo.lastFilter.Limit, worker.cfg.BatchSize)
	}
	if !notifications.lastNow.Equal(worker.clock.Now()) {
		t.Fatalf("dispatch now = %v", notifications.lastNow)
	}
}

func TestRunOnceContinuesPastGenerationFailure(t *testing.T) {
	repo := &fakeTradeRepo{stuck: []tradedomain.Trade{{ID: 1}, {ID: 2}, {ID: 3}}}
	invoices := &fakeInvoiceService{
		failFor: map[snowflake.ID]error{2: errors.New("render broke")},
	}
	worker := newTestWorker(repo, invoices, &fakeNotificationService{})

	// Per-trade failures are logged, not propagated.
	if err := worker.RunOnce(); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(invoices.generated) != 2 {
		t.Fatalf("expected trades 1 and 3 invoiced, got %v", invoices.generated)
	}
}

func TestRunOnceJoinsErrors(t *testing.T) {
	listErr := errors.New("db down")
	dispatchErr := errors.New("mail down")
	repo := &fakeTradeRepo{stuckErr: listErr}
	notifications := &fakeNotificationService{dispatchErr: dispatchErr}
	worker := newTestWorker(repo, &fakeInvoiceService{}, notifications)

	err := worker.RunOnce()
	if !errors.Is(err, listErr) || !errors.Is(err, dispatchErr) {
		t.Fatalf("expected both errors joined, got %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BatchSize: 10}.withDefaults()
	if cfg.BatchSize != 10 {
		t.Fatalf("explicit batch size overridden")
	}
	if cfg.PollInterval != 30*time.Second || cfg.InvoiceGraceWindow != 5*time.Minute {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}
