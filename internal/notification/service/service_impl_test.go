package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	auditdomain "github.com/plantmetrics/plant/internal/audit/domain"
	"github.com/plantmetrics/plant/internal/clock"
	"github.com/plantmetrics/plant/internal/mail"
	"github.com/plantmetrics/plant/internal/notification/domain"
)

type fakeMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	failTo   map[string]error
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failTo[msg.To]; ok {
		return err
	}
	f.messages = append(f.messages, msg)
	return nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []auditdomain.Entry
}

func (f *fakeAudit) Record(_ context.Context, entry auditdomain.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAudit) List(context.Context, auditdomain.ListFilter) ([]*auditdomain.AuditLog, error) {
	return nil, nil
}

func setupNotificationTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	statements := []string{
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
		`CREATE TABLE IF NOT EXISTS notifications_history (
			id INTEGER PRIMARY KEY,
			notification_type TEXT NOT NULL,
			recipient_type TEXT NOT NULL,
			recipient_selector TEXT,
			subject TEXT NOT NULL,
			message TEXT NOT NULL,
			recipient_count BIGINT NOT NULL DEFAULT 0,
			sender_id BIGINT,
			status TEXT NOT NULL,
			scheduled_for DATETIME,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func newNotificationService(t *testing.T, db *gorm.DB, mailer *fakeMailer, now time.Time) (*Service, *fakeAudit) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new snowflake node: %v", err)
	}
	audit := &fakeAudit{}
	svc := &Service{
		db:       db,
		log:      zap.NewNop(),
		genID:    node,
		clock:    clock.FixedClock{At: now},
		mailer:   mailer,
		auditSvc: audit,
	}
	return svc, audit
}

func insertRecipientProfile(t *testing.T, db *gorm.DB, id int64, email, fullName, role string, chapterID *int64, active bool) {
	t.Helper()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO profiles (id, user_id, email, full_name, role, chapter_id, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, id, email, fullName, role, chapterID, active, now, now,
	).Error; err != nil {
		t.Fatalf("insert profile: %v", err)
	}
}

func TestBroadcastValidation(t *testing.T) {
	db := setupNotificationTestDB(t)
	svc, _ := newNotificationService(t, db, &fakeMailer{}, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := svc.Broadcast(ctx, domain.BroadcastRequest{
		RecipientType: "everyone", Subject: "s", Message: "m",
	})
	if !errors.Is(err, domain.ErrInvalidRecipientType) {
		t.Fatalf("expected ErrInvalidRecipientType, got %v", err)
	}

	_, err = svc.Broadcast(ctx, domain.BroadcastRequest{
		RecipientType: domain.RecipientAll, Subject: "  ", Message: "m",
	})
	if !errors.Is(err, domain.ErrInvalidSubject) {
		t.Fatalf("expected ErrInvalidSubject, got %v", err)
	}

	_, err = svc.Broadcast(ctx, domain.BroadcastRequest{
		RecipientType: domain.RecipientChapter, Subject: "s", Message: "m",
	})
	if !errors.Is(err, domain.ErrChapterRequired) {
		t.Fatalf("expected ErrChapterRequired, got %v", err)
	}

	_, err = svc.Broadcast(ctx, domain.BroadcastRequest{
		RecipientType: domain.RecipientRole, Subject: "s", Message: "m", Role: "boss",
	})
	if !errors.Is(err, domain.ErrRoleRequired) {
		t.Fatalf("expected ErrRoleRequired, got %v", err)
	}

	_, err = svc.Broadcast(ctx, domain.BroadcastRequest{
		RecipientType: domain.RecipientCustom, Subject: "s", Message: "m",
		CustomEmails: []string{"  ", "no-at-sign"},
	})
	if !errors.Is(err, domain.ErrEmailsRequired) {
		t.Fatalf("expected ErrEmailsRequired, got %v", err)
	}
}

func TestBroadcastTargetsRoleAndSkipsInactive(t *testing.T) {
	db := setupNotificationTestDB(t)
	mailer := &fakeMailer{}
	svc, audit := newNotificationService(t, db, mailer, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	insertRecipientProfile(t, db, 1, "lead1@example.com", "Lead One", "chapter_leader", nil, true)
	insertRecipientProfile(t, db, 2, "lead2@example.com", "Lead Two", "chapter_leader", nil, false)
	insertRecipientProfile(t, db, 3, "member@example.com", "Member", "member", nil, true)

	result, err := svc.Broadcast(context.Background(), domain.BroadcastRequest{
		RecipientType: domain.RecipientRole,
		Role:          "chapter_leader",
		Subject:       "Hello {name}",
		Message:       "Dear {name}, the meeting moved.",
	})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if result.Sent != 1 || result.Failed != 0 {
		t.Fatalf("expected 1 sent, got %+v", result)
	}
	if len(mailer.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(mailer.messages))
	}
	msg := mailer.messages[0]
	if msg.To != "lead1@example.com" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	if msg.Subject != "Hello Lead One" {
		t.Fatalf("placeholder not rendered in subject: %q", msg.Subject)
	}
	if msg.Body != "Dear Lead One, the meeting moved." {
		t.Fatalf("placeholder not rendered in body: %q", msg.Body)
	}
	if len(audit.entries) != 1 || audit.entries[0].Action != "notification.broadcast" {
		t.Fatalf("expected broadcast audit entry, got %+v", audit.entries)
	}
}

func TestBroadcastCountsPartialFailures(t *testing.T) {
	db := setupNotificationTestDB(t)
	mailer := &fakeMailer{failTo: map[string]error{
		"b@example.com": errors.New("mailbox full"),
	}}
	svc, _ := newNotificationService(t, db, mailer, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	insertRecipientProfile(t, db, 1, "a@example.com", "A", "member", nil, true)
	insertRecipientProfile(t, db, 2, "b@example.com", "B", "member", nil, true)
	insertRecipientProfile(t, db, 3, "c@example.com", "C", "member", nil, true)

	result, err := svc.Broadcast(context.Background(), domain.BroadcastRequest{
		RecipientType: domain.RecipientAll,
		Subject:       "news",
		Message:       "body",
	})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if result.Sent != 2 || result.Failed != 1 {
		t.Fatalf("expected 2 sent / 1 failed, got %+v", result)
	}
	if result.Sent+result.Failed != result.RecipientCount {
		t.Fatalf("sent+failed should equal recipient count, got %+v", result)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected one error sample, got %v", result.Errors)
	}

	var status string
	if err := db.Raw(`SELECT status FROM notifications_history WHERE id = ?`, result.HistoryID).Scan(&status).Error; err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status != string(domain.StatusSent) {
		t.Fatalf("partial failure should still record sent, got %q", status)
	}
}

func TestBroadcastNoRecipients(t *testing.T) {
	db := setupNotificationTestDB(t)
	svc, _ := newNotificationService(t, db, &fakeMailer{}, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	_, err := svc.Broadcast(context.Background(), domain.BroadcastRequest{
		RecipientType: domain.RecipientAll,
		Subject:       "news",
		Message:       "body",
	})
	if !errors.Is(err, domain.ErrNoRecipients) {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
}

func TestBroadcastSchedulesFutureDelivery(t *testing.T) {
	db := setupNotificationTestDB(t)
	mailer := &fakeMailer{}
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	svc, _ := newNotificationService(t, db, mailer, now)

	insertRecipientProfile(t, db, 1, "a@example.com", "A", "member", nil, true)

	scheduledFor := now.Add(2 * time.Hour)
	result, err := svc.Broadcast(context.Background(), domain.BroadcastRequest{
		RecipientType: domain.RecipientAll,
		Subject:       "later",
		Message:       "see you at {name}",
		ScheduledFor:  &scheduledFor,
	})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if !result.Scheduled {
		t.Fatalf("expected scheduled result, got %+v", result)
	}
	if len(mailer.messages) != 0 {
		t.Fatalf("scheduled broadcast must not deliver immediately")
	}

	// Before the scheduled time nothing is due.
	dispatched, err := svc.DispatchScheduled(context.Background(), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if dispatched != 0 {
		t.Fatalf("expected nothing due, got %d", dispatched)
	}

	dispatched, err = svc.DispatchScheduled(context.Background(), scheduledFor.Add(time.Minute))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if dispatched != 1 {
		t.Fatalf("expected 1 dispatched, got %d", dispatched)
	}
	if len(mailer.messages) != 1 {
		t.Fatalf("expected 1 delivered message, got %d", len(mailer.messages))
	}

	// The claim already moved the row out of scheduled; a second sweep is a no-op.
	dispatched, err = svc.DispatchScheduled(context.Background(), scheduledFor.Add(time.Minute))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if dispatched != 0 {
		t.Fatalf("expected second sweep to dispatch nothing, got %d", dispatched)
	}
}

func TestCustomRecipientsFallBackToLocalPart(t *testing.T) {
	db := setupNotificationTestDB(t)
	mailer := &fakeMailer{}
	svc, _ := newNotificationService(t, db, mailer, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	insertRecipientProfile(t, db, 1, "known@example.com", "Known Member", "member", nil, true)

	result, err := svc.Broadcast(context.Background(), domain.BroadcastRequest{
		RecipientType: domain.RecipientCustom,
		Subject:       "hi {name}",
		Message:       "hello",
		CustomEmails:  []string{"known@example.com", "stranger@example.com"},
	})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if result.Sent != 2 {
		t.Fatalf("expected 2 sent, got %+v", result)
	}

	subjects := map[string]string{}
	for _, msg := range mailer.messages {
		subjects[msg.To] = msg.Subject
	}
	if subjects["known@example.com"] != "hi Known Member" {
		t.Fatalf("expected profile name, got %q", subjects["known@example.com"])
	}
	if subjects["stranger@example.com"] != "hi stranger" {
		t.Fatalf("expected local-part fallback, got %q", subjects["stranger@example.com"])
	}
}
