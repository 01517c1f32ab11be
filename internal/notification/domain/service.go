package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// BroadcastRequest is one administrator bulk-send.
type BroadcastRequest struct {
	NotificationType string        `json:"notification_type"`
	RecipientType    RecipientType `json:"recipient_type"`
	Subject          string        `json:"subject"`
	Message          string        `json:"message"`
	ChapterID        *snowflake.ID `json:"chapter_id,omitempty"`
	Role             string        `json:"role,omitempty"`
	CustomEmails     []string      `json:"custom_emails,omitempty"`
	ScheduledFor     *time.Time    `json:"scheduled_for,omitempty"`
	SenderID         snowflake.ID  `json:"-"`
}

// BroadcastResult summarizes one batch. Sent plus Failed equals the resolved
// recipient count unless the send was deferred.
type BroadcastResult struct {
	HistoryID      snowflake.ID `json:"history_id"`
	Scheduled      bool         `json:"scheduled"`
	RecipientCount int          `json:"recipient_count"`
	Sent           int          `json:"sent"`
	Failed         int          `json:"failed"`
	Errors         []string     `json:"errors,omitempty"`
}

type ListFilter struct {
	Status  Status
	AfterID snowflake.ID
	Limit   int
}

type Service interface {
	// Broadcast resolves recipients, delivers per-recipient, and writes one
	// history row. A scheduled_for in the future defers delivery to the
	// sweeper instead.
	Broadcast(ctx context.Context, req BroadcastRequest) (BroadcastResult, error)

	// DispatchScheduled delivers history rows whose schedule time has
	// passed. Returns the number of rows dispatched.
	DispatchScheduled(ctx context.Context, now time.Time) (int, error)

	List(ctx context.Context, filter ListFilter) ([]History, error)
}

var (
	ErrInvalidRecipientType = errors.New("invalid_recipient_type")
	ErrInvalidSubject       = errors.New("invalid_subject")
	ErrInvalidMessage       = errors.New("invalid_message")
	ErrNoRecipients         = errors.New("no_recipients")
	ErrChapterRequired      = errors.New("chapter_required")
	ErrRoleRequired         = errors.New("role_required")
	ErrEmailsRequired       = errors.New("emails_required")
)
