package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// InitiateInput starts a payment attempt for a pending trade.
type InitiateInput struct {
	TradeID     snowflake.ID
	PhoneNumber string
}

type InitiateResult struct {
	CheckoutToken string `json:"checkout_token"`
}

type Service interface {
	// Initiate pushes a charge request at the provider and, on a positive
	// acknowledgement, records the checkout token against the trade. A
	// declined acknowledgement leaves the trade pending.
	Initiate(ctx context.Context, input InitiateInput) (InitiateResult, error)

	// HandleCallback settles or fails the trade the callback's correlation
	// token points at. Replays against an already-paid trade are no-ops.
	HandleCallback(ctx context.Context, payload []byte) error
}

var (
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidPhone     = errors.New("invalid_phone")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrTradeNotFound    = errors.New("trade_not_found")
	ErrTradeNotPayable  = errors.New("trade_not_payable")
	ErrUnknownToken     = errors.New("unknown_token")
	ErrInitiateDeclined = errors.New("initiate_declined")
)
