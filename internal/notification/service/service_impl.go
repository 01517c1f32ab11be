package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	auditdomain "github.com/plantmetrics/plant/internal/audit/domain"
	"github.com/plantmetrics/plant/internal/clock"
	"github.com/plantmetrics/plant/internal/mail"
	"github.com/plantmetrics/plant/internal/notification/domain"
	profiledomain "github.com/plantmetrics/plant/internal/profile/domain"
)

const (
	// Deliveries go out in chunks with a short pause between them so a large
	// broadcast does not hammer the SMTP relay.
	chunkSize  = 50
	chunkPause = 250 * time.Millisecond

	maxErrorSamples = 5
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Mailer   mail.Sender
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	mailer   mail.Sender
	auditSvc auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("notification.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		mailer:   p.Mailer,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Broadcast(ctx context.Context, req domain.BroadcastRequest) (domain.BroadcastResult, error) {
	if err := validate(&req); err != nil {
		return domain.BroadcastResult{}, err
	}

	recipients, err := s.resolve(ctx, req.RecipientType, req.ChapterID, req.Role, req.CustomEmails)
	if err != nil {
		return domain.BroadcastResult{}, err
	}
	if len(recipients) == 0 {
		return domain.BroadcastResult{}, domain.ErrNoRecipients
	}

	now := s.clock.Now()
	history := domain.History{
		ID:                s.genID.Generate(),
		NotificationType:  req.NotificationType,
		RecipientType:     req.RecipientType,
		RecipientSelector: selectorLabel(req),
		Subject:           req.Subject,
		Message:           req.Message,
		RecipientCount:    int64(len(recipients)),
		Status:            domain.StatusSent,
		Metadata:          datatypes.JSONMap{},
		CreatedAt:         now,
	}
	if req.SenderID != 0 {
		senderID := req.SenderID
		history.SenderID = &senderID
	}
	if req.RecipientType == domain.RecipientCustom {
		history.Metadata["custom_emails"] = strings.Join(req.CustomEmails, ",")
	}

	if req.ScheduledFor != nil && req.ScheduledFor.After(now) {
		scheduled := req.ScheduledFor.UTC()
		history.Status = domain.StatusScheduled
		history.ScheduledFor = &scheduled
		if err := s.db.WithContext(ctx).Create(&history).Error; err != nil {
			return domain.BroadcastResult{}, err
		}
		s.audit(ctx, history, 0, 0)
		return domain.BroadcastResult{
			HistoryID:      history.ID,
			Scheduled:      true,
			RecipientCount: len(recipients),
		}, nil
	}

	sent, failed, samples := s.deliver(ctx, recipients, req.Subject, req.Message)

	history.Metadata["sent"] = sent
	history.Metadata["failed"] = failed
	if len(samples) > 0 {
		history.Metadata["errors"] = strings.Join(samples, "; ")
	}
	if sent == 0 && failed > 0 {
		history.Status = domain.StatusFailed
	}
	if err := s.db.WithContext(ctx).Create(&history).Error; err != nil {
		return domain.BroadcastResult{}, err
	}
	s.audit(ctx, history, sent, failed)

	return domain.BroadcastResult{
		HistoryID:      history.ID,
		RecipientCount: len(recipients),
		Sent:           sent,
		Failed:         failed,
		Errors:         samples,
	}, nil
}

func (s *Service) DispatchScheduled(ctx context.Context, now time.Time) (int, error) {
	var due []domain.History
	err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_for IS NOT NULL AND scheduled_for <= ?", domain.StatusScheduled, now).
		Order("scheduled_for ASC").
		Limit(50).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for i := range due {
		row := due[i]
		// Claim before delivering so two sweepers never double-send.
		claim := s.db.WithContext(ctx).Exec(
			`UPDATE notifications_history SET status = ? WHERE id = ? AND status = ?`,
			domain.StatusSent, row.ID, domain.StatusScheduled,
		)
		if claim.Error != nil {
			return dispatched, claim.Error
		}
		if claim.RowsAffected == 0 {
			continue
		}

		recipients, err := s.resolveStored(ctx, row)
		if err != nil {
			s.log.Warn("scheduled broadcast recipient resolution failed",
				zap.String("history_id", row.ID.String()), zap.Error(err))
			s.finishScheduled(ctx, row.ID, domain.StatusFailed, 0, 0, []string{err.Error()})
			continue
		}

		sent, failed, samples := s.deliver(ctx, recipients, row.Subject, row.Message)
		status := domain.StatusSent
		if sent == 0 && failed > 0 {
			status = domain.StatusFailed
		}
		s.finishScheduled(ctx, row.ID, status, sent, failed, samples)
		dispatched++
	}
	return dispatched, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.History, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Order("id DESC").Limit(limit)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
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

func validate(req *domain.BroadcastRequest) error {
	if !req.RecipientType.Valid() {
		return domain.ErrInvalidRecipientType
	}
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)
	if req.Subject == "" {
		return domain.ErrInvalidSubject
	}
	if req.Message == "" {
		return domain.ErrInvalidMessage
	}
	if req.NotificationType == "" {
		req.NotificationType = "announcement"
	}
	switch req.RecipientType {
	case domain.RecipientChapter:
		if req.ChapterID == nil {
			return domain.ErrChapterRequired
		}
	case domain.RecipientRole:
		if !profiledomain.Role(req.Role).Valid() {
			return domain.ErrRoleRequired
		}
	case domain.RecipientCustom:
		cleaned := make([]string, 0, len(req.CustomEmails))
		for _, email := range req.CustomEmails {
			email = strings.TrimSpace(email)
			if email != "" && strings.Contains(email, "@") {
				cleaned = append(cleaned, email)
			}
		}
		if len(cleaned) == 0 {
			return domain.ErrEmailsRequired
		}
		req.CustomEmails = cleaned
	}
	return nil
}

func selectorLabel(req domain.BroadcastRequest) *string {
	var label string
	switch req.RecipientType {
	case domain.RecipientChapter:
		label = req.ChapterID.String()
	case domain.RecipientRole:
		label = req.Role
	case domain.RecipientCustom:
		label = fmt.Sprintf("%d addresses", len(req.CustomEmails))
	default:
		return nil
	}
	return &label
}

type recipientRow struct {
	Email    string
	FullName string
}

func (s *Service) resolve(
	ctx context.Context,
	kind domain.RecipientType,
	chapterID *snowflake.ID,
	role string,
	customEmails []string,
) ([]domain.Recipient, error) {
	if kind == domain.RecipientCustom {
		return s.resolveCustom(ctx, customEmails)
	}

	query := `SELECT email, full_name FROM profiles WHERE is_active = TRUE`
	args := []any{}
	switch kind {
	case domain.RecipientChapter:
		query += ` AND chapter_id = ?`
		args = append(args, *chapterID)
	case domain.RecipientRole:
		query += ` AND role = ?`
		args = append(args, role)
	}
	query += ` ORDER BY id`

	var rows []recipientRow
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	recipients := make([]domain.Recipient, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		email := strings.ToLower(row.Email)
		if _, dup := seen[email]; dup || email == "" {
			continue
		}
		seen[email] = struct{}{}
		recipients = append(recipients, domain.Recipient{Email: row.Email, Name: row.FullName})
	}
	return recipients, nil
}

// resolveCustom keeps addresses that match no profile; the {name} placeholder
// falls back to the mailbox local part for those.
func (s *Service) resolveCustom(ctx context.Context, emails []string) ([]domain.Recipient, error) {
	var rows []recipientRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT email, full_name FROM profiles WHERE LOWER(email) IN ?`,
		lowered(emails),
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(rows))
	for _, row := range rows {
		names[strings.ToLower(row.Email)] = row.FullName
	}

	recipients := make([]domain.Recipient, 0, len(emails))
	seen := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		key := strings.ToLower(email)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		name := names[key]
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}
		recipients = append(recipients, domain.Recipient{Email: email, Name: name})
	}
	return recipients, nil
}

func (s *Service) resolveStored(ctx context.Context, row domain.History) ([]domain.Recipient, error) {
	switch row.RecipientType {
	case domain.RecipientChapter:
		if row.RecipientSelector == nil {
			return nil, domain.ErrChapterRequired
		}
		chapterID, err := snowflake.ParseString(*row.RecipientSelector)
		if err != nil {
			return nil, domain.ErrChapterRequired
		}
		return s.resolve(ctx, domain.RecipientChapter, &chapterID, "", nil)
	case domain.RecipientRole:
		if row.RecipientSelector == nil {
			return nil, domain.ErrRoleRequired
		}
		return s.resolve(ctx, domain.RecipientRole, nil, *row.RecipientSelector, nil)
	case domain.RecipientCustom:
		raw, _ := row.Metadata["custom_emails"].(string)
		emails := strings.Split(raw, ",")
		if raw == "" || len(emails) == 0 {
			return nil, domain.ErrEmailsRequired
		}
		return s.resolveCustom(ctx, emails)
	default:
		return s.resolve(ctx, domain.RecipientAll, nil, "", nil)
	}
}

// deliver sends per-recipient and never aborts the batch on one failure.
func (s *Service) deliver(
	ctx context.Context,
	recipients []domain.Recipient,
	subject, message string,
) (sent, failed int, samples []string) {
	for i, recipient := range recipients {
		if i > 0 && i%chunkSize == 0 {
			select {
			case <-ctx.Done():
				failed += len(recipients) - i
				if len(samples) < maxErrorSamples {
					samples = append(samples, ctx.Err().Error())
				}
				return sent, failed, samples
			case <-time.After(chunkPause):
			}
		}

		err := s.mailer.Send(ctx, mail.Message{
			To:      recipient.Email,
			Subject: render(subject, recipient.Name),
			Body:    render(message, recipient.Name),
		})
		if err != nil {
			failed++
			if len(samples) < maxErrorSamples {
				samples = append(samples, fmt.Sprintf("%s: %v", recipient.Email, err))
			}
			continue
		}
		sent++
	}
	return sent, failed, samples
}

func render(template, name string) string {
	return strings.ReplaceAll(template, "{name}", name)
}

func (s *Service) finishScheduled(
	ctx context.Context,
	id snowflake.ID,
	status domain.Status,
	sent, failed int,
	samples []string,
) {
	metadata := datatypes.JSONMap{"sent": sent, "failed": failed}
	if len(samples) > 0 {
		metadata["errors"] = strings.Join(samples, "; ")
	}
	err := s.db.WithContext(ctx).
		Model(&domain.History{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "metadata": metadata}).Error
	if err != nil {
		s.log.Warn("updating scheduled broadcast outcome failed",
			zap.String("history_id", id.String()), zap.Error(err))
	}
}

func (s *Service) audit(ctx context.Context, history domain.History, sent, failed int) {
	targetID := history.ID.String()
	entry := auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeSystem,
		Action:     "notification.broadcast",
		TargetType: "notification",
		TargetID:   &targetID,
		Metadata: map[string]any{
			"recipient_type":  string(history.RecipientType),
			"recipient_count": history.RecipientCount,
			"status":          string(history.Status),
			"sent":            sent,
			"failed":          failed,
		},
	}
	if history.SenderID != nil {
		actorID := history.SenderID.String()
		entry.ActorType = auditdomain.ActorTypeUser
		entry.ActorID = &actorID
	}
	if err := s.auditSvc.Record(ctx, entry); err != nil {
		s.log.Warn("audit write failed", zap.Error(err))
	}
}

func lowered(emails []string) []string {
	out := make([]string, 0, len(emails))
	for _, email := range emails {
		out = append(out, strings.ToLower(strings.TrimSpace(email)))
	}
	return out
}
