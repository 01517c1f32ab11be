package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	auditdomain "github.com/plantmetrics/plant/internal/audit/domain"
	"github.com/plantmetrics/plant/internal/clock"
	"github.com/plantmetrics/plant/internal/invoice/domain"
	"github.com/plantmetrics/plant/internal/invoice/render"
	"github.com/plantmetrics/plant/internal/mail"
	tradedomain "github.com/plantmetrics/plant/internal/trade/domain"
	traderepository "github.com/plantmetrics/plant/internal/trade/repository"
)

type recordingAudit struct {
	entries []auditdomain.Entry
}

func (r *recordingAudit) Record(_ context.Context, entry auditdomain.Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingAudit) List(context.Context, auditdomain.ListFilter) ([]*auditdomain.AuditLog, error) {
	return nil, nil
}

func (r *recordingAudit) actions() []string {
	out := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.Action)
	}
	return out
}

type captureMailer struct {
	messages []mail.Message
	fail     error
}

func (c *captureMailer) Send(_ context.Context, msg mail.Message) error {
	if c.fail != nil {
		return c.fail
	}
	c.messages = append(c.messages, msg)
	return nil
}

type stubRenderer struct{}

func (stubRenderer) RenderHTML(input render.RenderInput) (string, error) {
	return "<html>" + input.Invoice.Number + "</html>", nil
}

func setupInvoiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY,
			declarer_id BIGINT NOT NULL,
			chapter_id BIGINT,
			amount_cents BIGINT NOT NULL,
			description TEXT NOT NULL,
			source_member_id BIGINT,
			beneficiary_member_id BIGINT,
			status TEXT NOT NULL DEFAULT 'pending',
			payment_ref TEXT,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			id INTEGER PRIMARY KEY,
			trade_id BIGINT NOT NULL UNIQUE,
			invoice_number TEXT NOT NULL UNIQUE,
			amount_cents BIGINT NOT NULL,
			file_name TEXT,
			issued_at DATETIME NOT NULL,
			paid_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			id INTEGER PRIMARY KEY,
			user_id BIGINT NOT NULL,
			email TEXT NOT NULL,
			full_name TEXT NOT NULL,
			role TEXT NOT NULL,
			chapter_id BIGINT,
			business_name TEXT,
			business_description TEXT,
			phone TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chapters (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			leader_id BIGINT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func newInvoiceService(t *testing.T, db *gorm.DB) (*Service, *recordingAudit, *captureMailer) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new snowflake node: %v", err)
	}
	audit := &recordingAudit{}
	mailer := &captureMailer{}
	svc := &Service{
		db:        db,
		log:       zap.NewNop(),
		genID:     node,
		clock:     clock.FixedClock{At: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
		tradeRepo: traderepository.Provide(),
		auditSvc:  audit,
		mailer:    mailer,
		renderer:  stubRenderer{},
	}
	return svc, audit, mailer
}

func seedTrade(t *testing.T, db *gorm.DB, id int64, status tradedomain.Status) {
	t.Helper()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO trades (id, declarer_id, amount_cents, description, status, metadata, created_at, updated_at)
		 VALUES (?, 100, 250000, 'consulting engagement', ?, '{}', ?, ?)`,
		id, string(status), now, now,
	).Error; err != nil {
		t.Fatalf("insert trade: %v", err)
	}
}

func seedDeclarer(t *testing.T, db *gorm.DB) {
	t.Helper()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO profiles (id, user_id, email, full_name, role, is_active, created_at, updated_at)
		 VALUES (100, 100, 'declarer@example.com', 'Declarer', 'member', TRUE, ?, ?)`,
		now, now,
	).Error; err != nil {
		t.Fatalf("insert declarer: %v", err)
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc, audit, _ := newInvoiceService(t, db)
	seedTrade(t, db, 1, tradedomain.StatusPending)
	seedDeclarer(t, db)

	first, err := svc.Generate(context.Background(), 1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first.Existed {
		t.Fatalf("first generate must create")
	}
	if !strings.HasPrefix(first.Invoice.InvoiceNumber, "INV-2025-") {
		t.Fatalf("unexpected invoice number %q", first.Invoice.InvoiceNumber)
	}
	if first.Invoice.AmountCents != 250000 {
		t.Fatalf("amount not copied from trade, got %d", first.Invoice.AmountCents)
	}
	if first.Document == "" {
		t.Fatalf("expected rendered document")
	}

	var status string
	if err := db.Raw(`SELECT status FROM trades WHERE id = 1`).Scan(&status).Error; err != nil {
		t.Fatalf("read trade: %v", err)
	}
	if status != string(tradedomain.StatusInvoiced) {
		t.Fatalf("expected trade invoiced, got %q", status)
	}

	second, err := svc.Generate(context.Background(), 1)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if !second.Existed {
		t.Fatalf("second generate must return the existing invoice")
	}
	if second.Invoice.InvoiceNumber != first.Invoice.InvoiceNumber {
		t.Fatalf("invoice number changed on replay")
	}

	var count int64
	if err := db.Raw(`SELECT COUNT(1) FROM invoices WHERE trade_id = 1`).Scan(&count).Error; err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one invoice row, got %d", count)
	}
	if got := audit.actions(); len(got) != 1 || got[0] != "invoice.generate" {
		t.Fatalf("expected one generate audit entry, got %v", got)
	}
}

func TestGenerateRejectsIneligibleTrades(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc, _, _ := newInvoiceService(t, db)
	seedTrade(t, db, 2, tradedomain.StatusCancelled)

	_, err := svc.Generate(context.Background(), 2)
	if !errors.Is(err, domain.ErrTradeNotEligible) {
		t.Fatalf("expected ErrTradeNotEligible, got %v", err)
	}

	_, err = svc.Generate(context.Background(), 404)
	if !errors.Is(err, domain.ErrTradeNotFound) {
		t.Fatalf("expected ErrTradeNotFound, got %v", err)
	}
}

func TestMarkPaidReplayIsNoOp(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc, audit, _ := newInvoiceService(t, db)
	seedTrade(t, db, 3, tradedomain.StatusPending)
	seedDeclarer(t, db)

	if _, err := svc.Generate(context.Background(), 3); err != nil {
		t.Fatalf("generate: %v", err)
	}

	actor := domain.Actor{ProfileID: 55}
	if err := svc.MarkPaid(context.Background(), 3, actor); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	var status string
	if err := db.Raw(`SELECT status FROM trades WHERE id = 3`).Scan(&status).Error; err != nil {
		t.Fatalf("read trade: %v", err)
	}
	if status != string(tradedomain.StatusPaid) {
		t.Fatalf("expected trade paid, got %q", status)
	}

	// Replay: invoices.paid_at is already set, nothing changes and no
	// second audit entry appears.
	if err := svc.MarkPaid(context.Background(), 3, actor); err != nil {
		t.Fatalf("mark paid replay: %v", err)
	}
	markPaidEntries := 0
	for _, action := range audit.actions() {
		if action == "invoice.mark_paid" {
			markPaidEntries++
		}
	}
	if markPaidEntries != 1 {
		t.Fatalf("expected exactly one mark_paid audit entry, got %d", markPaidEntries)
	}
}

func TestMarkPaidWithoutInvoice(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc, _, _ := newInvoiceService(t, db)
	seedTrade(t, db, 4, tradedomain.StatusPending)

	err := svc.MarkPaid(context.Background(), 4, domain.Actor{ProfileID: 55})
	if !errors.Is(err, domain.ErrNoInvoice) {
		t.Fatalf("expected ErrNoInvoice, got %v", err)
	}
}

func TestResendDeliversToDeclarer(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc, audit, mailer := newInvoiceService(t, db)
	seedTrade(t, db, 5, tradedomain.StatusPending)
	seedDeclarer(t, db)

	if _, err := svc.Generate(context.Background(), 5); err != nil {
		t.Fatalf("generate: %v", err)
	}

	if err := svc.Resend(context.Background(), 5, domain.Actor{ProfileID: 55}); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if len(mailer.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(mailer.messages))
	}
	msg := mailer.messages[0]
	if msg.To != "declarer@example.com" || !msg.HTML {
		t.Fatalf("unexpected message %+v", msg)
	}

	found := false
	for _, entry := range audit.entries {
		if entry.Action == "invoice.resend" {
			found = true
			if entry.Metadata["delivery"] != "sent" {
				t.Fatalf("expected delivery sent, got %v", entry.Metadata["delivery"])
			}
		}
	}
	if !found {
		t.Fatalf("expected resend audit entry")
	}
}

func TestResendAuditsFailedDelivery(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc, audit, mailer := newInvoiceService(t, db)
	seedTrade(t, db, 6, tradedomain.StatusPending)
	seedDeclarer(t, db)

	if _, err := svc.Generate(context.Background(), 6); err != nil {
		t.Fatalf("generate: %v", err)
	}

	mailer.fail = errors.New("smtp unavailable")
	err := svc.Resend(context.Background(), 6, domain.Actor{ProfileID: 55})
	if err == nil {
		t.Fatalf("expected delivery error")
	}

	found := false
	for _, entry := range audit.entries {
		if entry.Action == "invoice.resend" {
			found = true
			if entry.Metadata["delivery"] != "failed" {
				t.Fatalf("expected delivery failed, got %v", entry.Metadata["delivery"])
			}
		}
	}
	if !found {
		t.Fatalf("failed resend must still be audited")
	}
}
