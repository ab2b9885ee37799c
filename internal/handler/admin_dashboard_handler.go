package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/examdesk/examdesk-api/internal/service"
	"github.com/examdesk/examdesk-api/internal/utils"
)

// AdminDashboardHandler wires the admin dashboard and log routes.
type AdminDashboardHandler struct {
	service service.AdminDashboardService
	seed    service.SeedService
	logger  zerolog.Logger
}

// NewAdminDashboardHandler constructs the handler.
func NewAdminDashboardHandler(service service.AdminDashboardService, seed service.SeedService, logger zerolog.Logger) *AdminDashboardHandler {
	return &AdminDashboardHandler{
		service: service,
		seed:    seed,
		logger:  logger.With().Str("component", "admin_dashboard_handler").Logger(),
	}
}

// Register attaches dashboard endpoints to the router group.
func (h *AdminDashboardHandler) Register(router fiber.Router) {
	router.Get("/dashboard", h.dashboard)
	router.Get("/logs", h.logs)
	router.Post("/seed", h.runSeed)
}

func (h *AdminDashboardHandler) dashboard(c *fiber.Ctx) error {
	resp, err := h.service.Dashboard(c.Context(), actorFromCtx(c))
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "dashboard retrieved", resp)
}

func (h *AdminDashboardHandler) logs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	resp, err := h.service.Logs(c.Context(), actorFromCtx(c), c.Query("view"), limit)
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "logs retrieved", resp)
}

func (h *AdminDashboardHandler) runSeed(c *fiber.Ctx) error {
	token := c.Get("X-Seed-Token")
	if token == "" {
		token = c.Query("token")
	}

	err := h.seed.Seed(c.Context(), token)
	switch err {
	case nil:
		return utils.SendSuccess(c, "defaults seeded", nil)
	case service.ErrSeedDisabled:
		return utils.SendError(c, fiber.StatusForbidden, "seeding is disabled")
	case service.ErrSeedTokenInvalid:
		return utils.SendError(c, fiber.StatusForbidden, "invalid seed token")
	default:
		return h.internalError(c, err)
	}
}

func (h *AdminDashboardHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
