package render

import "time"

// RenderInput is the deterministic input used for invoice rendering.
type RenderInput struct {
	Invoice InvoiceView
	Member  MemberView
	Trade   TradeView
}

type InvoiceView struct {
	Number      string
	AmountCents int64
	IssuedAt    time.Time
	PaidAt      *time.Time
}

type MemberView struct {
	FullName     string
	BusinessName string
	Email        string
}

type TradeView struct {
	Description string
	ChapterName string
	DeclaredAt  time.Time
}

type Renderer interface {
	RenderHTML(input RenderInput) (string, error)
}
