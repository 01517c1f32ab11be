package domain

import (
	"context"
	"time"
)

// InitiateRequest is the charge request pushed at the provider when a member
// declares a trade.
type InitiateRequest struct {
	PhoneNumber string
	AmountCents int64
	Description string
	Reference   string
}

// InitiateAck is the provider's synchronous acknowledgement. CheckoutToken is
// the correlation token the asynchronous callback carries back.
type InitiateAck struct {
	CheckoutToken string
}

// CallbackEvent is the normalized form of a provider result callback.
// ResultCode zero means the payment settled.
type CallbackEvent struct {
	CheckoutToken string
	ResultCode    int
	ResultDesc    string
	ReceiptNumber string
	AmountCents   int64
	PayerPhone    string
	TransactionAt *time.Time
}

func (e CallbackEvent) Succeeded() bool { return e.ResultCode == 0 }

type PaymentAdapter interface {
	Initiate(ctx context.Context, req InitiateRequest) (InitiateAck, error)
	ParseCallback(ctx context.Context, payload []byte) (*CallbackEvent, error)
}

// AdapterConfig carries the provider credentials from configuration.
type AdapterConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(config AdapterConfig) (PaymentAdapter, error)
}
