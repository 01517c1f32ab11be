package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/plantmetrics/plant/internal/audit/domain"
	"github.com/plantmetrics/plant/internal/mail"
	"github.com/plantmetrics/plant/internal/profile/domain"
	"github.com/plantmetrics/plant/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	AuditSvc auditdomain.Service
	Mailer   mail.Sender
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	auditSvc auditdomain.Service
	mailer   mail.Sender
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("profile.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
		mailer:   p.Mailer,
	}
}

// CreateUser provisions the authentication identity and the profile row
// together. The identity insert is rolled back when the profile write fails
// so no orphaned login is left behind.
func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (domain.Profile, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.Profile{}, domain.ErrInvalidEmail
	}
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return domain.Profile{}, domain.ErrInvalidFullName
	}
	if !req.Role.Valid() {
		return domain.Profile{}, domain.ErrInvalidRole
	}
	if req.ChapterID != nil {
		if err := s.checkChapterExists(ctx, *req.ChapterID); err != nil {
			return domain.Profile{}, err
		}
	}

	existing, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return domain.Profile{}, err
	}
	if existing != nil {
		return domain.Profile{}, domain.ErrEmailTaken
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:        s.genID.Generate(),
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertUser(ctx, s.db, &user); err != nil {
		return domain.Profile{}, err
	}

	profile := domain.Profile{
		ID:        s.genID.Generate(),
		UserID:    user.ID,
		Email:     email,
		FullName:  fullName,
		Role:      req.Role,
		ChapterID: req.ChapterID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if v := strings.TrimSpace(req.BusinessName); v != "" {
		profile.BusinessName = &v
	}
	if v := strings.TrimSpace(req.BusinessDescription); v != "" {
		profile.BusinessDescription = &v
	}
	if v := strings.TrimSpace(req.Phone); v != "" {
		profile.Phone = &v
	}

	if err := s.repo.InsertProfile(ctx, s.db, &profile); err != nil {
		if rollbackErr := s.repo.DeleteUser(ctx, s.db, user.ID); rollbackErr != nil {
			s.log.Error("identity rollback failed after profile insert",
				zap.String("user_id", user.ID.String()),
				zap.Error(rollbackErr),
			)
			return domain.Profile{}, domain.ErrIdentityRollback
		}
		return domain.Profile{}, err
	}

	s.sendPasswordSetEmail(ctx, profile)

	targetID := profile.ID.String()
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeUser,
		Action:     "user.create",
		TargetType: "profile",
		TargetID:   &targetID,
		Metadata: map[string]any{
			"email": email,
			"role":  string(req.Role),
		},
	})

	return profile, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Profile, error) {
	profile, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Profile{}, err
	}
	if profile == nil {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return *profile, nil
}

func (s *Service) GetByUserID(ctx context.Context, userID snowflake.ID) (domain.Profile, error) {
	profile, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return domain.Profile{}, err
	}
	if profile == nil {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return *profile, nil
}

func (s *Service) List(ctx context.Context, req domain.ListProfilesRequest) (domain.ListProfilesResponse, error) {
	page := req.Pagination.Normalize()
	filter := domain.ListFilter{
		Role:      req.Role,
		ChapterID: req.ChapterID,
		Search:    req.Search,
		AfterID:   snowflake.ID(pagination.DecodeToken(page.PageToken)),
		Limit:     page.PageSize,
	}
	profiles, total, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListProfilesResponse{}, err
	}

	resp := domain.ListProfilesResponse{Profiles: profiles}
	resp.TotalCount = total
	if len(profiles) == page.PageSize {
		resp.NextPageToken = pagination.EncodeToken(int64(profiles[len(profiles)-1].ID))
	}
	return resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateProfileRequest) (domain.Profile, error) {
	profile, err := s.repo.FindByID(ctx, s.db, req.ProfileID)
	if err != nil {
		return domain.Profile{}, err
	}
	if profile == nil {
		return domain.Profile{}, domain.ErrProfileNotFound
	}

	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return domain.Profile{}, domain.ErrInvalidFullName
		}
		profile.FullName = name
	}
	if req.BusinessName != nil {
		profile.BusinessName = trimmedOrNil(*req.BusinessName)
	}
	if req.BusinessDescription != nil {
		profile.BusinessDescription = trimmedOrNil(*req.BusinessDescription)
	}
	if req.Phone != nil {
		profile.Phone = trimmedOrNil(*req.Phone)
	}
	if req.ClearChapter {
		profile.ChapterID = nil
	} else if req.ChapterID != nil {
		if err := s.checkChapterExists(ctx, *req.ChapterID); err != nil {
			return domain.Profile{}, err
		}
		profile.ChapterID = req.ChapterID
	}

	profile.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, profile); err != nil {
		return domain.Profile{}, err
	}
	return *profile, nil
}

func (s *Service) SetActive(ctx context.Context, id snowflake.ID, active bool) error {
	result := s.db.WithContext(ctx).Exec(
		`UPDATE profiles SET is_active = ?, updated_at = ? WHERE id = ? AND is_active = ?`,
		active, time.Now().UTC(), id, !active,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Already in the requested state, or missing. Distinguish the two.
		existing, err := s.repo.FindByID(ctx, s.db, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrProfileNotFound
		}
		return nil
	}

	action := "user.deactivate"
	if active {
		action = "user.reactivate"
	}
	targetID := id.String()
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeUser,
		Action:     action,
		TargetType: "profile",
		TargetID:   &targetID,
	})
	return nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	profile, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if profile == nil {
		return domain.ErrProfileNotFound
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Detach the profile from any chapter leadership before removal.
		if err := tx.WithContext(ctx).Exec(
			`UPDATE chapters SET leader_id = NULL, updated_at = ? WHERE leader_id = ?`,
			time.Now().UTC(), id,
		).Error; err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.repo.DeleteUser(ctx, tx, profile.UserID)
	})
	if err != nil {
		return err
	}

	targetID := id.String()
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeUser,
		Action:     "user.delete",
		TargetType: "profile",
		TargetID:   &targetID,
		Metadata:   map[string]any{"email": profile.Email},
	})
	return nil
}

func (s *Service) checkChapterExists(ctx context.Context, chapterID snowflake.ID) error {
	var count int64
	if err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM chapters WHERE id = ?`, chapterID,
	).Scan(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrChapterNotFound
	}
	return nil
}

func (s *Service) sendPasswordSetEmail(ctx context.Context, profile domain.Profile) {
	body := fmt.Sprintf(
		"Hello %s,\n\nYour PLANT Metrics account has been created. Visit the portal and use the password reset flow with this email address to set your password.\n",
		profile.FullName,
	)
	err := s.mailer.Send(ctx, mail.Message{
		To:      profile.Email,
		Subject: "Welcome to PLANT Metrics",
		Body:    body,
	})
	if err != nil {
		// Delivery failure does not fail account creation.
		s.log.Warn("password-set email failed", zap.String("email", profile.Email), zap.Error(err))
	}
}

func trimmedOrNil(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
