package handlers

import (
	"log/slog"

	"viewly/internal/models"
	"viewly/internal/services/viewing"
	"viewly/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// PropertyHandler lets admins record who owns a property.
type PropertyHandler struct {
	catalog *viewing.PropertyCatalog
	logger  *slog.Logger
}

func NewPropertyHandler(catalog *viewing.PropertyCatalog, logger *slog.Logger) *PropertyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PropertyHandler{catalog: catalog, logger: logger.With("component", "property_handler")}
}

type propertyInput struct {
	LandlordID string `json:"landlord_id" validate:"required,max=64"`
	ViewingFee int64  `json:"viewing_fee" validate:"gte=0"`
	Currency   string `json:"currency" validate:"omitempty,len=3"`
}

// Register handles PUT /api/admin/properties/:id.
func (h *PropertyHandler) Register(c *fiber.Ctx) error {
	var input propertyInput
	if err := bind(c, &input); err != nil {
		return writeError(c, h.logger, err)
	}
	p := &models.Property{
		ID:         c.Params("id"),
		LandlordID: input.LandlordID,
		ViewingFee: input.ViewingFee,
		Currency:   input.Currency,
	}
	if err := h.catalog.Register(c.UserContext(), p); err != nil {
		return writeError(c, h.logger, err)
	}
	h.logger.Info("property registered", "property_id", p.ID, "landlord_id", p.LandlordID)
	return response.Success(c, "Property saved", p)
}
