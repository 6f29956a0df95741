package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"
)

// StripeConfig holds the credentials used by StripeProvider.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// Timeout bounds every HTTP call to Stripe.
	Timeout time.Duration
}

// StripeProvider implements Provider with Stripe Checkout.
// The provider reference is the Checkout Session ID.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProvider creates a Stripe-backed provider.
func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, backends)
	return &StripeProvider{api: api, webhookSecret: cfg.WebhookSecret}
}

func (p *StripeProvider) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	successURL := req.ReturnURL
	if successURL != "" {
		successURL = withQuery(successURL, "reference", req.Reference)
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = req.ReturnURL
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		ClientReferenceID:  stripe.String(req.Reference),
		SuccessURL:         stripe.String(successURL),
		CancelURL:          stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(req.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("reference", req.Reference)
	if req.CallbackURL != "" {
		params.AddMetadata("callback_url", req.CallbackURL)
	}
	params.SetIdempotencyKey("viewing-" + req.Reference)

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %v", ErrProviderUnavailable, err)
	}
	return &InitializeResult{PaymentURL: sess.URL, ProviderReference: sess.ID}, nil
}

func (p *StripeProvider) Refund(ctx context.Context, providerReference string, amount int64) error {
	getParams := &stripe.CheckoutSessionParams{}
	getParams.Context = ctx
	sess, err := p.api.CheckoutSessions.Get(providerReference, getParams)
	if err != nil {
		return fmt.Errorf("%w: load checkout session: %v", ErrProviderUnavailable, err)
	}
	if sess.PaymentIntent == nil {
		return fmt.Errorf("%w: session %s has no payment intent", ErrProviderUnavailable, providerReference)
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(sess.PaymentIntent.ID),
		Amount:        stripe.Int64(amount),
	}
	params.Context = ctx
	params.SetIdempotencyKey(fmt.Sprintf("refund-%s-%d", providerReference, amount))
	if _, err := p.api.Refunds.New(params); err != nil {
		return fmt.Errorf("%w: refund: %v", ErrProviderUnavailable, err)
	}
	return nil
}

// ParseEvent verifies a Stripe webhook and extracts the checkout outcome.
func (p *StripeProvider) ParseEvent(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return checkoutEvent(ev)
}

func checkoutEvent(ev stripe.Event) (*Event, error) {
	var succeeded bool
	switch ev.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		succeeded = true
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		succeeded = false
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnhandledEvent, ev.Type)
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	// completed sessions for delayed payment methods are not paid yet
	if ev.Type == "checkout.session.completed" && sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		return nil, fmt.Errorf("%w: session %s awaiting async payment", ErrUnhandledEvent, sess.ID)
	}
	return &Event{ProviderReference: sess.ID, Succeeded: succeeded}, nil
}

func withQuery(rawURL, key, value string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + key + "=" + value
}
