package handlers

import (
	"errors"
	"log/slog"

	"viewly/internal/services/payment"
	"viewly/internal/services/viewing"

	"github.com/gofiber/fiber/v2"
)

// WebhookHandler receives payment outcomes from the provider.
type WebhookHandler struct {
	verifier payment.WebhookVerifier
	service  *viewing.Service
	logger   *slog.Logger
}

func NewWebhookHandler(verifier payment.WebhookVerifier, service *viewing.Service, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{verifier: verifier, service: service, logger: logger.With("component", "payment_webhook")}
}

// HandlePayment handles POST /api/webhooks/payments. A non-2xx reply makes the
// provider redeliver, so only transient failures return one.
func (h *WebhookHandler) HandlePayment(c *fiber.Ctx) error {
	ev, err := h.verifier.ParseEvent(c.Body(), c.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		h.logger.Warn("rejected webhook", "error", err)
		return c.SendStatus(fiber.StatusBadRequest)
	case errors.Is(err, payment.ErrUnhandledEvent):
		h.logger.Debug("ignored webhook", "error", err)
		return c.SendStatus(fiber.StatusOK)
	case err != nil:
		h.logger.Warn("malformed webhook", "error", err)
		return c.SendStatus(fiber.StatusBadRequest)
	}

	err = h.service.HandlePaymentEvent(c.UserContext(), ev.ProviderReference, ev.Succeeded)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"received": true})
	case errors.Is(err, viewing.ErrNotFound):
		h.logger.Warn("payment for unknown reference", "provider_reference", ev.ProviderReference)
		return c.JSON(fiber.Map{"received": true})
	case errors.Is(err, viewing.ErrConcurrentModification):
		return c.SendStatus(fiber.StatusConflict)
	}
	h.logger.Error("failed to apply payment event", "provider_reference", ev.ProviderReference, "error", err)
	return c.SendStatus(fiber.StatusInternalServerError)
}
