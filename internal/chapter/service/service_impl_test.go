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

	auditdomain "github.com/plantmetrics/plant/internal/audit/domain"
	"github.com/plantmetrics/plant/internal/chapter/domain"
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

func setupChapterTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS chapters (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			leader_id BIGINT,
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
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func newChapterService(t *testing.T, db *gorm.DB) (*Service, *recordingAudit) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new snowflake node: %v", err)
	}
	audit := &recordingAudit{}
	return &Service{
		db:       db,
		log:      zap.NewNop(),
		genID:    node,
		auditSvc: audit,
	}, audit
}

func insertChapterProfile(t *testing.T, db *gorm.DB, id int64, role string, chapterID *int64) {
	t.Helper()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO profiles (id, user_id, email, full_name, role, chapter_id, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, TRUE, ?, ?)`,
		id, id, fmt.Sprintf("user%d@example.com", id), fmt.Sprintf("User %d", id), role, chapterID, now, now,
	).Error; err != nil {
		t.Fatalf("insert profile: %v", err)
	}
}

func TestCreateValidatesNameAndLeader(t *testing.T) {
	db := setupChapterTestDB(t)
	svc, _ := newChapterService(t, db)
	ctx := context.Background()

	if _, err := svc.Create(ctx, domain.CreateChapterRequest{Name: "   "}); !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}

	missing := snowflake.ID(404)
	_, err := svc.Create(ctx, domain.CreateChapterRequest{Name: "Westlands", LeaderID: &missing})
	if !errors.Is(err, domain.ErrLeaderNotFound) {
		t.Fatalf("expected ErrLeaderNotFound, got %v", err)
	}

	insertChapterProfile(t, db, 10, "member", nil)
	memberID := snowflake.ID(10)
	_, err = svc.Create(ctx, domain.CreateChapterRequest{Name: "Westlands", LeaderID: &memberID})
	if !errors.Is(err, domain.ErrNotChapterLeader) {
		t.Fatalf("expected ErrNotChapterLeader, got %v", err)
	}

	insertChapterProfile(t, db, 11, "chapter_leader", nil)
	leaderID := snowflake.ID(11)
	chapter, err := svc.Create(ctx, domain.CreateChapterRequest{Name: "  Westlands  ", LeaderID: &leaderID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if chapter.Name != "Westlands" {
		t.Fatalf("name not trimmed, got %q", chapter.Name)
	}
	if chapter.LeaderID == nil || *chapter.LeaderID != leaderID {
		t.Fatalf("leader not stored")
	}
}

func TestDeleteRefusesChapterWithMembers(t *testing.T) {
	db := setupChapterTestDB(t)
	svc, audit := newChapterService(t, db)
	ctx := context.Background()

	chapter, err := svc.Create(ctx, domain.CreateChapterRequest{Name: "Kilimani"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	chapterID := int64(chapter.ID)
	insertChapterProfile(t, db, 20, "member", &chapterID)

	if err := svc.Delete(ctx, chapter.ID); !errors.Is(err, domain.ErrChapterHasMembers) {
		t.Fatalf("expected ErrChapterHasMembers, got %v", err)
	}

	// The guard must leave the row untouched.
	if _, err := svc.GetByID(ctx, chapter.ID); err != nil {
		t.Fatalf("chapter should still exist: %v", err)
	}
	if len(audit.entries) != 0 {
		t.Fatalf("refused delete must not be audited")
	}
}

func TestDeleteRemovesEmptyChapter(t *testing.T) {
	db := setupChapterTestDB(t)
	svc, audit := newChapterService(t, db)
	ctx := context.Background()

	chapter, err := svc.Create(ctx, domain.CreateChapterRequest{Name: "Kilimani"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(ctx, chapter.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetByID(ctx, chapter.ID); !errors.Is(err, domain.ErrChapterNotFound) {
		t.Fatalf("expected ErrChapterNotFound after delete, got %v", err)
	}
	if len(audit.entries) != 1 || audit.entries[0].Action != "chapter.delete" {
		t.Fatalf("expected chapter.delete audit entry, got %v", audit.entries)
	}

	if err := svc.Delete(ctx, chapter.ID); !errors.Is(err, domain.ErrChapterNotFound) {
		t.Fatalf("expected ErrChapterNotFound, got %v", err)
	}
}

func TestUpdateRenameAndClearLeader(t *testing.T) {
	db := setupChapterTestDB(t)
	svc, _ := newChapterService(t, db)
	ctx := context.Background()

	insertChapterProfile(t, db, 30, "chapter_leader", nil)
	leaderID := snowflake.ID(30)
	chapter, err := svc.Create(ctx, domain.CreateChapterRequest{Name: "Old Name", LeaderID: &leaderID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newName := "New Name"
	noLeader := snowflake.ID(0)
	updated, err := svc.Update(ctx, domain.UpdateChapterRequest{
		ChapterID: chapter.ID,
		Name:      &newName,
		LeaderID:  &noLeader,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "New Name" {
		t.Fatalf("name not updated, got %q", updated.Name)
	}
	if updated.LeaderID != nil {
		t.Fatalf("leader not cleared")
	}
}
