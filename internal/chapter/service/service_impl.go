package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/plantmetrics/plant/internal/audit/domain"
	"github.com/plantmetrics/plant/internal/chapter/domain"
	profiledomain "github.com/plantmetrics/plant/internal/profile/domain"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	auditSvc auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("chapter.service"),
		genID:    p.GenID,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateChapterRequest) (domain.Chapter, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Chapter{}, domain.ErrInvalidName
	}
	if req.LeaderID != nil {
		if err := s.checkLeader(ctx, *req.LeaderID); err != nil {
			return domain.Chapter{}, err
		}
	}

	now := time.Now().UTC()
	chapter := domain.Chapter{
		ID:        s.genID.Generate(),
		Name:      name,
		LeaderID:  req.LeaderID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&chapter).Error; err != nil {
		return domain.Chapter{}, err
	}
	return chapter, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Chapter, error) {
	var chapter domain.Chapter
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&chapter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Chapter{}, domain.ErrChapterNotFound
		}
		return domain.Chapter{}, err
	}
	return chapter, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Overview, error) {
	var rows []domain.Overview
	err := s.db.WithContext(ctx).Raw(
		`SELECT c.id, c.name, c.leader_id, c.created_at, c.updated_at,
		        COALESCE(l.full_name, '') AS leader_name,
		        (SELECT COUNT(1) FROM profiles p WHERE p.chapter_id = c.id) AS member_count
		 FROM chapters c
		 LEFT JOIN profiles l ON l.id = c.leader_id
		 ORDER BY c.name ASC, c.id ASC`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateChapterRequest) (domain.Chapter, error) {
	chapter, err := s.GetByID(ctx, req.ChapterID)
	if err != nil {
		return domain.Chapter{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Chapter{}, domain.ErrInvalidName
		}
		chapter.Name = name
	}
	if req.LeaderID != nil {
		if *req.LeaderID == 0 {
			chapter.LeaderID = nil
		} else {
			if err := s.checkLeader(ctx, *req.LeaderID); err != nil {
				return domain.Chapter{}, err
			}
			chapter.LeaderID = req.LeaderID
		}
	}

	chapter.UpdatedAt = time.Now().UTC()
	if err := s.db.WithContext(ctx).Save(&chapter).Error; err != nil {
		return domain.Chapter{}, err
	}
	return chapter, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chapter domain.Chapter
		err := tx.WithContext(ctx).
			Where("id = ?", id).
			First(&chapter).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrChapterNotFound
			}
			return err
		}

		var memberCount int64
		if err := tx.WithContext(ctx).Raw(
			`SELECT COUNT(1) FROM profiles WHERE chapter_id = ?`, id,
		).Scan(&memberCount).Error; err != nil {
			return err
		}
		if memberCount > 0 {
			return domain.ErrChapterHasMembers
		}

		if err := tx.WithContext(ctx).
			Where("id = ?", id).
			Delete(&domain.Chapter{}).Error; err != nil {
			return err
		}

		targetID := id.String()
		return s.auditSvc.Record(ctx, auditdomain.Entry{
			ActorType:  auditdomain.ActorTypeUser,
			Action:     "chapter.delete",
			TargetType: "chapter",
			TargetID:   &targetID,
			Metadata:   map[string]any{"name": chapter.Name},
		})
	})
}

func (s *Service) Roster(ctx context.Context, id snowflake.ID) ([]profiledomain.Profile, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	var members []profiledomain.Profile
	err := s.db.WithContext(ctx).
		Where("chapter_id = ?", id).
		Order("full_name ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// checkLeader verifies the candidate exists and carries the leader role.
func (s *Service) checkLeader(ctx context.Context, leaderID snowflake.ID) error {
	var role string
	err := s.db.WithContext(ctx).Raw(
		`SELECT role FROM profiles WHERE id = ?`, leaderID,
	).Scan(&role).Error
	if err != nil {
		return err
	}
	if role == "" {
		return domain.ErrLeaderNotFound
	}
	if profiledomain.Role(role) != profiledomain.RoleChapterLeader && profiledomain.Role(role) != profiledomain.RoleAdministrator {
		return domain.ErrNotChapterLeader
	}
	return nil
}
