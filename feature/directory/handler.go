package directory

import (
	"lockcode-manager/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for directory sync.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the directory routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/directory")
	group.Get("/locks", h.HandleListLocks)
	group.Post("/sync", h.HandleSync)
}

// HandleListLocks returns the known lock profiles.
// @Summary List Lock Profiles
// @Description Lists lock profiles with their vendor link and cached code. Profiles without a vendor lock id are unresolved.
// @Tags directory
// @Produce json
// @Success 200 {array} models.LockProfile
// @Failure 500 {object} map[string]interface{} "Database failure"
// @Router /directory/locks [get]
func (h *Handler) HandleListLocks(c *fiber.Ctx) error {
	profiles, err := h.service.Locks(c.UserContext())
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Failed to list lock profiles", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(profiles)
}

// HandleSync refreshes lock profiles and slots from the vendor.
// @Summary Sync Lock Directory
// @Description Lists every vendor lock, matches its alias to a property and refreshes its passcode slots.
// @Tags directory
// @Produce json
// @Success 200 {object} Report
// @Failure 502 {object} map[string]interface{} "Vendor API failure"
// @Router /directory/sync [post]
func (h *Handler) HandleSync(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Info("Starting directory sync")

	report, err := h.service.Sync(c.UserContext())
	if err != nil {
		l.Error("Directory sync failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":  err.Error(),
			"report": report,
		})
	}
	return c.JSON(report)
}
