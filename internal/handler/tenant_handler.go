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

// TenantHandler wires tenant administration routes.
type TenantHandler struct {
	service service.TenantService
	logger  zerolog.Logger
}

// NewTenantHandler constructs the handler.
func NewTenantHandler(service service.TenantService, logger zerolog.Logger) *TenantHandler {
	return &TenantHandler{
		service: service,
		logger:  logger.With().Str("component", "tenant_handler").Logger(),
	}
}

// Register attaches tenant endpoints to the router group.
func (h *TenantHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", h.create)
}

func (h *TenantHandler) list(c *fiber.Ctx) error {
	tenants, err := h.service.List(c.Context())
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "tenants retrieved", tenants)
}

func (h *TenantHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	tenant, err := h.service.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrTenantNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "tenant not found")
		}
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "tenant retrieved", tenant)
}

func (h *TenantHandler) create(c *fiber.Ctx) error {
	var payload dto.TenantCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	tenant, err := h.service.Create(c.Context(), payload)
	if err != nil {
		var validationErrors validator.ValidationErrors
		switch {
		case errors.Is(err, service.ErrTenantSlugTaken):
			return utils.SendError(c, fiber.StatusConflict, "tenant slug already exists")
		case errors.As(err, &validationErrors):
			return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
		default:
			return h.internalError(c, err)
		}
	}
	return utils.SendCreated(c, "tenant created", tenant)
}

func (h *TenantHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
