package credentials

import (
	"errors"
	"strings"

	"lockcode-manager/core/logger"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SetRequest is the body of a credential update.
type SetRequest struct {
	Value string `json:"value" validate:"required"`
}

// Handler handles HTTP requests for credential rotation.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// RegisterRoutes registers the credential routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Put("/settings/:key", h.HandleSet)
}

// HandleSet stores a vendor credential.
// @Summary Rotate Credential
// @Description Stores a vendor credential in the settings table and drops its cached value.
// @Tags settings
// @Accept json
// @Param key path string true "Setting key"
// @Param body body SetRequest true "New value"
// @Success 204
// @Failure 400 {object} map[string]interface{} "Unknown key or empty value"
// @Failure 500 {object} map[string]interface{} "Database failure"
// @Router /settings/{key} [put]
func (h *Handler) HandleSet(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	key := c.Params("key")

	var req SetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body: " + err.Error()})
	}
	req.Value = strings.TrimSpace(req.Value)
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "value is required"})
	}

	err := h.service.Set(c.UserContext(), key, req.Value)
	switch {
	case errors.Is(err, ErrUnknownKey):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		l.Error("Failed to rotate credential", zap.String("key", key), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save setting"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
