package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/plantmetrics/plant/internal/clock"
	"github.com/plantmetrics/plant/internal/trade/domain"
	"github.com/plantmetrics/plant/internal/trade/repository"
)

func setupTradeTestDB(t *testing.T) *gorm.DB {
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
		`CREATE TABLE IF NOT EXISTS invoices (
			id INTEGER PRIMARY KEY,
			trade_id BIGINT NOT NULL UNIQUE,
			invoice_number TEXT NOT NULL UNIQUE,
			amount_cents BIGINT NOT NULL DEFAULT 0,
			file_name TEXT,
			issued_at DATETIME NOT NULL,
			paid_at DATETIME,
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

func newTradeService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new snowflake node: %v", err)
	}
	return &Service{
		db:    db,
		log:   zap.NewNop(),
		genID: node,
		clock: clock.FixedClock{At: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
		repo:  repository.Provide(),
	}
}

func insertTradeProfile(t *testing.T, db *gorm.DB, id int64, chapterID *int64) {
	t.Helper()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO profiles (id, user_id, email, full_name, role, chapter_id, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, 'Member', 'member', ?, TRUE, ?, ?)`,
		id, id, fmt.Sprintf("m%d@example.com", id), chapterID, now, now,
	).Error; err != nil {
		t.Fatalf("insert profile: %v", err)
	}
}

func TestDeclareRejectsBadInput(t *testing.T) {
	db := setupTradeTestDB(t)
	svc := newTradeService(t, db)

	_, err := svc.Declare(context.Background(), domain.DeclareRequest{
		DeclarerID: 1, Amount: "not-a-number", Description: "lawn care",
	})
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	_, err = svc.Declare(context.Background(), domain.DeclareRequest{
		DeclarerID: 1, Amount: "-5.00", Description: "lawn care",
	})
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}

	_, err = svc.Declare(context.Background(), domain.DeclareRequest{
		DeclarerID: 1, Amount: "10.00", Description: "   ",
	})
	if !errors.Is(err, domain.ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
}

func TestDeclareRejectsUnknownCounterpart(t *testing.T) {
	db := setupTradeTestDB(t)
	svc := newTradeService(t, db)

	source := snowflake.ID(999)
	_, err := svc.Declare(context.Background(), domain.DeclareRequest{
		DeclarerID:     1,
		Amount:         "25.00",
		Description:    "intro referral",
		SourceMemberID: &source,
	})
	if !errors.Is(err, domain.ErrCounterpartUnknown) {
		t.Fatalf("expected ErrCounterpartUnknown, got %v", err)
	}
}

func TestDeclareRejectsCrossChapterCounterpart(t *testing.T) {
	db := setupTradeTestDB(t)
	svc := newTradeService(t, db)

	otherChapter := int64(2)
	insertTradeProfile(t, db, 50, &otherChapter)

	chapterID := snowflake.ID(1)
	source := snowflake.ID(50)
	_, err := svc.Declare(context.Background(), domain.DeclareRequest{
		DeclarerID:     1,
		ChapterID:      &chapterID,
		Amount:         "25.00",
		Description:    "intro referral",
		SourceMemberID: &source,
	})
	if !errors.Is(err, domain.ErrCounterpartUnknown) {
		t.Fatalf("expected ErrCounterpartUnknown, got %v", err)
	}
}

func TestDeclareStoresCentsAndPendingStatus(t *testing.T) {
	db := setupTradeTestDB(t)
	svc := newTradeService(t, db)

	trade, err := svc.Declare(context.Background(), domain.DeclareRequest{
		DeclarerID:  7,
		Amount:      "1250.50",
		Description: "  bookkeeping contract  ",
	})
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if trade.AmountCents != 125050 {
		t.Fatalf("expected 125050 cents, got %d", trade.AmountCents)
	}
	if trade.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", trade.Status)
	}
	if trade.Description != "bookkeeping contract" {
		t.Fatalf("expected trimmed description, got %q", trade.Description)
	}
}

func TestCancelOnlyFromPending(t *testing.T) {
	db := setupTradeTestDB(t)
	svc := newTradeService(t, db)

	trade, err := svc.Declare(context.Background(), domain.DeclareRequest{
		DeclarerID: 7, Amount: "40.00", Description: "design work",
	})
	if err != nil {
		t.Fatalf("declare: %v", err)
	}

	if err := svc.Cancel(context.Background(), trade.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// A second cancel finds the trade already terminal.
	err = svc.Cancel(context.Background(), trade.ID)
	if !errors.Is(err, domain.ErrNotCancellable) {
		t.Fatalf("expected ErrNotCancellable, got %v", err)
	}

	err = svc.Cancel(context.Background(), snowflake.ID(12345))
	if !errors.Is(err, domain.ErrTradeNotFound) {
		t.Fatalf("expected ErrTradeNotFound, got %v", err)
	}
}

func TestTransitionStatusIsConditional(t *testing.T) {
	db := setupTradeTestDB(t)
	svc := newTradeService(t, db)
	repo := svc.repo

	trade, err := svc.Declare(context.Background(), domain.DeclareRequest{
		DeclarerID: 7, Amount: "40.00", Description: "design work",
	})
	if err != nil {
		t.Fatalf("declare: %v", err)
	}

	moved, err := repo.TransitionStatus(context.Background(), db, trade.ID,
		[]domain.Status{domain.StatusPending}, domain.StatusInvoiced)
	if err != nil || !moved {
		t.Fatalf("expected pending->invoiced to move, got moved=%v err=%v", moved, err)
	}

	// The same transition loses once the trade has left pending.
	moved, err = repo.TransitionStatus(context.Background(), db, trade.ID,
		[]domain.Status{domain.StatusPending}, domain.StatusCancelled)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if moved {
		t.Fatalf("expected conditional transition to lose")
	}

	moved, err = repo.TransitionStatus(context.Background(), db, trade.ID,
		[]domain.Status{domain.StatusPending, domain.StatusInvoiced}, domain.StatusPaid)
	if err != nil || !moved {
		t.Fatalf("expected invoiced->paid to move, got moved=%v err=%v", moved, err)
	}
}

func TestListStuckInvoicedSkipsTradesWithInvoices(t *testing.T) {
	db := setupTradeTestDB(t)
	svc := newTradeService(t, db)
	repo := svc.repo

	old := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	insertStuckTrade(t, db, 1, "invoiced", old)
	insertStuckTrade(t, db, 2, "invoiced", old)
	insertStuckTrade(t, db, 3, "pending", old)

	if err := db.Exec(
		`INSERT INTO invoices (id, trade_id, invoice_number, amount_cents, issued_at, created_at, updated_at)
		 VALUES (10, 2, 'INV-2025-10', 1000, ?, ?, ?)`,
		old, old, old,
	).Error; err != nil {
		t.Fatalf("insert invoice: %v", err)
	}

	stuck, err := repo.ListStuckInvoiced(context.Background(), db, domain.StuckFilter{
		Before: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("list stuck: %v", err)
	}
	if len(stuck) != 1 || stuck[0].ID != 1 {
		t.Fatalf("expected only trade 1 stuck, got %+v", stuck)
	}
}

func insertStuckTrade(t *testing.T, db *gorm.DB, id int64, status string, updatedAt time.Time) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO trades (id, declarer_id, amount_cents, description, status, metadata, created_at, updated_at)
		 VALUES (?, 7, 1000, 'work', ?, '{}', ?, ?)`,
		id, status, updatedAt, updatedAt,
	).Error; err != nil {
		t.Fatalf("insert trade: %v", err)
	}
}
