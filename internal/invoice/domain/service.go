package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// GenerateResult carries the invoice row plus a renderable document body.
type GenerateResult struct {
	Invoice Invoice `json:"invoice"`
	// Document is the rendered HTML payload for the invoice. Empty when
	// the call returned an already-existing invoice without re-rendering.
	Document string `json:"document,omitempty"`
	Existed  bool   `json:"existed"`
}

// Actor identifies who performed a reconciliation-style action, for the
// audit trail. A zero ID means the system acted.
type Actor struct {
	ProfileID snowflake.ID
}

type Service interface {
	// Generate issues the invoice for a trade. Repeated calls return the
	// same invoice number and never create a second row.
	Generate(ctx context.Context, tradeID snowflake.ID) (GenerateResult, error)
	GetByTradeID(ctx context.Context, tradeID snowflake.ID) (Invoice, error)
	// MarkPaid is the administrator's manual reconciliation. Marking an
	// already-paid invoice again is a no-op, not an error.
	MarkPaid(ctx context.Context, tradeID snowflake.ID, actor Actor) error
	// Resend re-delivers the invoice document to the declaring member's
	// email. Statuses are untouched; the attempt is always audited.
	Resend(ctx context.Context, tradeID snowflake.ID, actor Actor) error
}

var (
	ErrTradeNotFound    = errors.New("trade_not_found")
	ErrNoInvoice        = errors.New("no_invoice_found")
	ErrTradeNotEligible = errors.New("trade_not_eligible")
)
