package handlers

import (
	"errors"
	"log/slog"

	"viewly/internal/services/escrow"
	"viewly/internal/services/viewing"
	"viewly/internal/utils/response"
	"viewly/internal/utils/validation"

	"github.com/gofiber/fiber/v2"
)

var errUnauthenticated = errors.New("missing credentials")

// requestError is a malformed or invalid request body.
type requestError struct {
	message string
	fields  []validation.ValidationError
}

func (e *requestError) Error() string { return e.message }

// writeError maps domain errors to stable codes. Unknown errors are logged
// and reported as INTERNAL without detail.
func writeError(c *fiber.Ctx, logger *slog.Logger, err error) error {
	var dup *viewing.DuplicateRequestError
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		var extra fiber.Map
		if len(reqErr.fields) > 0 {
			extra = fiber.Map{"fields": reqErr.fields}
		}
		return response.ErrorWithCode(c, fiber.StatusBadRequest, "VALIDATION_ERROR", reqErr.message, extra)
	case errors.Is(err, errUnauthenticated):
		return response.ErrorWithCode(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", err.Error(), nil)
	case errors.As(err, &dup):
		return response.ErrorWithCode(c, fiber.StatusConflict, "DUPLICATE_REQUEST",
			"an active viewing request already exists for this property",
			fiber.Map{"existing_id": dup.ExistingID, "existing_status": dup.ExistingStatus})
	case errors.Is(err, viewing.ErrDuplicateRequest):
		return response.ErrorWithCode(c, fiber.StatusConflict, "DUPLICATE_REQUEST", err.Error(), nil)
	case errors.Is(err, viewing.ErrUnauthorized):
		return response.ErrorWithCode(c, fiber.StatusForbidden, "UNAUTHORIZED", err.Error(), nil)
	case errors.Is(err, viewing.ErrNotFound), errors.Is(err, viewing.ErrPropertyNotFound):
		return response.ErrorWithCode(c, fiber.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, escrow.ErrDisputeWindowExpired):
		return response.ErrorWithCode(c, fiber.StatusConflict, "DISPUTE_WINDOW_EXPIRED", "the dispute window has closed", nil)
	case errors.Is(err, escrow.ErrAlreadyConfirmed):
		return response.ErrorWithCode(c, fiber.StatusConflict, "ALREADY_CONFIRMED", "you have already confirmed this viewing", nil)
	case errors.Is(err, escrow.ErrInvalidTransition):
		return response.ErrorWithCode(c, fiber.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	case errors.Is(err, viewing.ErrConcurrentModification):
		return response.ErrorWithCode(c, fiber.StatusConflict, "CONCURRENT_MODIFICATION",
			"the viewing request changed while processing; retry", fiber.Map{"retryable": true})
	case errors.Is(err, viewing.ErrPaymentProvider):
		logger.Warn("payment provider failure", "path", c.Path(), "error", err)
		return response.ErrorWithCode(c, fiber.StatusBadGateway, "PAYMENT_PROVIDER_ERROR", "payment provider unavailable, try again later", nil)
	case errors.Is(err, viewing.ErrValidation):
		return response.ErrorWithCode(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	}

	logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return response.ErrorWithCode(c, fiber.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}
