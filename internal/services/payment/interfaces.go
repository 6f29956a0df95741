package payment

import (
	"context"
	"errors"
)

var (
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrUnhandledEvent      = errors.New("unhandled payment event")
)

// InitializeRequest asks the provider for a hosted payment page.
type InitializeRequest struct {
	Amount      int64
	Currency    string
	Reference   string
	Description string
	CallbackURL string
	ReturnURL   string
	CancelURL   string
}

// InitializeResult is where to send the tenant and how to find the payment later.
type InitializeResult struct {
	PaymentURL        string
	ProviderReference string
}

// Event is a verified payment outcome delivered by the provider.
type Event struct {
	ProviderReference string
	Succeeded         bool
}

// Provider is the payment gateway the escrow flow depends on.
type Provider interface {
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	Refund(ctx context.Context, providerReference string, amount int64) error
}

// WebhookVerifier turns a signed webhook delivery into an Event.
type WebhookVerifier interface {
	ParseEvent(payload []byte, signature string) (*Event, error)
}
