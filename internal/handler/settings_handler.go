package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/examdesk/examdesk-api/internal/dto"
	"github.com/examdesk/examdesk-api/internal/service"
	"github.com/examdesk/examdesk-api/internal/utils"
)

// SettingsHandler wires the current-user settings routes.
type SettingsHandler struct {
	service service.AuthService
	logger  zerolog.Logger
}

// NewSettingsHandler constructs the handler.
func NewSettingsHandler(service service.AuthService, logger zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{
		service: service,
		logger:  logger.With().Str("component", "settings_handler").Logger(),
	}
}

// Register attaches settings endpoints to the router group.
func (h *SettingsHandler) Register(router fiber.Router) {
	router.Get("/profile", h.profile)
	router.Put("/password", h.changePassword)
	router.Put("/timezone", h.updateTimezone)
}

func (h *SettingsHandler) profile(c *fiber.Ctx) error {
	actor := actorFromCtx(c)
	user, err := h.service.Profile(c.Context(), actor.ID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "profile retrieved", user)
}

func (h *SettingsHandler) changePassword(c *fiber.Ctx) error {
	var payload dto.ChangePasswordRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	actor := actorFromCtx(c)
	if err := h.service.ChangePassword(c.Context(), actor.ID, payload); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "password changed", nil)
}

func (h *SettingsHandler) updateTimezone(c *fiber.Ctx) error {
	var payload dto.TimezoneUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	actor := actorFromCtx(c)
	user, err := h.service.UpdateTimezone(c.Context(), actor.ID, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "timezone updated", user)
}

func (h *SettingsHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrPasswordMismatch):
		return utils.SendError(c, fiber.StatusBadRequest, "current password is incorrect")
	case errors.Is(err, service.ErrInvalidTimezone):
		return utils.SendError(c, fiber.StatusBadRequest, "unknown timezone")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
