package handlers

import (
	"log/slog"
	"time"

	"viewly/internal/middleware"
	"viewly/internal/models"
	"viewly/internal/services/escrow"
	"viewly/internal/services/viewing"
	"viewly/internal/utils/pagination"
	"viewly/internal/utils/response"
	"viewly/internal/utils/validation"

	"github.com/gofiber/fiber/v2"
)

type ViewingHandler struct {
	service *viewing.Service
	logger  *slog.Logger
}

func NewViewingHandler(service *viewing.Service, logger *slog.Logger) *ViewingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewingHandler{service: service, logger: logger.With("component", "viewing_handler")}
}

type createViewingInput struct {
	PropertyID     string      `json:"property_id" validate:"required,max=64"`
	PreferredDates []time.Time `json:"preferred_dates" validate:"len=3"`
}

type cancelInput struct {
	Reason     string `json:"reason" validate:"max=500"`
	OnBehalfOf string `json:"on_behalf_of" validate:"omitempty,oneof=tenant landlord"`
}

type noShowInput struct {
	Reason string `json:"reason" validate:"max=500"`
}

type disputeInput struct {
	Evidence string `json:"evidence" validate:"required,max=2000"`
}

type scheduleInput struct {
	ScheduledDate time.Time `json:"scheduled_date" validate:"required"`
}

type resolveInput struct {
	Outcome string `json:"outcome" validate:"required,oneof=completed cancelled_by_tenant cancelled_by_landlord"`
	Note    string `json:"note" validate:"max=500"`
}

// bind parses an optional JSON body into dst and validates it.
func bind(c *fiber.Ctx, dst interface{}) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(dst); err != nil {
			return &requestError{message: "invalid request format"}
		}
	}
	if errs := validation.Struct(dst); len(errs) > 0 {
		return &requestError{message: validation.Summary(errs), fields: errs}
	}
	return nil
}

func caller(c *fiber.Ctx) (models.Caller, error) {
	cl, ok := middleware.CallerFrom(c)
	if !ok {
		return models.Caller{}, errUnauthenticated
	}
	return cl, nil
}

func transitionBody(res *escrow.Result) fiber.Map {
	return fiber.Map{
		"viewing":         res.Viewing,
		"refund_amount":   res.Split.Refund,
		"landlord_payout": res.Split.Payout,
		"resolved":        res.Resolved,
	}
}

// CreateViewingRequest handles POST /api/viewings.
func (h *ViewingHandler) CreateViewingRequest(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	var input createViewingInput
	if err := bind(c, &input); err != nil {
		return writeError(c, h.logger, err)
	}

	res, err := h.service.CreateViewingRequest(c.UserContext(), cl, viewing.CreateInput{
		PropertyID:     input.PropertyID,
		PreferredDates: input.PreferredDates,
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return response.Created(c, "Viewing request created", fiber.Map{
		"viewing":     res.Viewing,
		"payment_url": res.PaymentURL,
	})
}

// ListViewings handles GET /api/viewings.
func (h *ViewingHandler) ListViewings(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	p := pagination.ParseFromRequest(c)
	reqs, err := h.service.ListViewings(c.UserContext(), cl, p.Limit, p.Offset)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(pagination.Response(p, reqs, len(reqs)))
}

// GetViewing handles GET /api/viewings/:id.
func (h *ViewingHandler) GetViewing(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	v, err := h.service.GetViewing(c.UserContext(), cl, c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return response.Success(c, "Viewing request retrieved", v)
}

// GetPayout handles GET /api/viewings/:id/payout.
func (h *ViewingHandler) GetPayout(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	p, err := h.service.Payout(c.UserContext(), cl, c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return response.Success(c, "Payout retrieved", p)
}

// Cancel handles POST /api/viewings/:id/cancel.
func (h *ViewingHandler) Cancel(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	var input cancelInput
	if err := bind(c, &input); err != nil {
		return writeError(c, h.logger, err)
	}
	res, err := h.service.CancelViewingRequest(c.UserContext(), cl, c.Params("id"), input.Reason, escrow.Actor(input.OnBehalfOf))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return response.Success(c, "Viewing request cancelled", transitionBody(res))
}

// ReportNoShow handles POST /api/viewings/:id/no-show.
func (h *ViewingHandler) ReportNoShow(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	var input noShowInput
	if err := bind(c, &input); err != nil {
		return writeError(c, h.logger, err)
	}
	res, err := h.service.ReportNoShow(c.UserContext(), cl, c.Params("id"), input.Reason)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return response.Success(c, "No-show reported", transitionBody(res))
}

// DisputeNoShow handles POST /api/viewings/:id/dispute.
func (h *ViewingHandler) DisputeNoShow(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	var input disputeInput
	if err := bind(c, &input); err != nil {
		return writeError(c, h.logger, err)
	}
	res, err := h.service.DisputeNoShow(c.UserContext(), cl, c.Params("id"), input.Evidence)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return response.Success(c, "No-show disputed", transitionBody(res))
}

// Confirm handles POST /api/viewings/:id/confirm.
func (h *ViewingHandler) Confirm(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	res, err := h.service.ConfirmViewing(c.UserContext(), cl, c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	body := transitionBody(res)
	body["both_confirmed"] = res.BothConfirmed
	return response.Success(c, "Viewing confirmed", body)
}

// Schedule handles POST /api/viewings/:id/schedule.
func (h *ViewingHandler) Schedule(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	var input scheduleInput
	if err := bind(c, &input); err != nil {
		return writeError(c, h.logger, err)
	}
	res, err := h.service.ScheduleViewing(c.UserContext(), cl, c.Params("id"), input.ScheduledDate)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return response.Success(c, "Viewing scheduled", transitionBody(res))
}

// Resolve handles POST /api/admin/viewings/:id/resolve.
func (h *ViewingHandler) Resolve(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	var input resolveInput
	if err := bind(c, &input); err != nil {
		return writeError(c, h.logger, err)
	}
	res, err := h.service.ResolveDispute(c.UserContext(), cl, c.Params("id"), models.ViewingStatus(input.Outcome), input.Note)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return response.Success(c, "Dispute resolved", transitionBody(res))
}

// Expire handles POST /api/admin/viewings/:id/expire.
func (h *ViewingHandler) Expire(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	res, err := h.service.Expire(c.UserContext(), cl, c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return response.Success(c, "Viewing request expired", transitionBody(res))
}
