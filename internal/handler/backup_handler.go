package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/examdesk/examdesk-api/internal/dto"
	"github.com/examdesk/examdesk-api/internal/service"
	"github.com/examdesk/examdesk-api/internal/utils"
)

// Confirmation words required by the destructive backup endpoints.
const (
	confirmRestore = "RESTORE"
	confirmReset   = "RESET"
)

// BackupHandler wires backup and factory reset routes.
type BackupHandler struct {
	service service.BackupService
	logger  zerolog.Logger
}

// NewBackupHandler constructs the handler.
func NewBackupHandler(service service.BackupService, logger zerolog.Logger) *BackupHandler {
	return &BackupHandler{
		service: service,
		logger:  logger.With().Str("component", "backup_handler").Logger(),
	}
}

// Register attaches backup endpoints to the router group.
func (h *BackupHandler) Register(router fiber.Router) {
	router.Get("/backups", h.list)
	router.Post("/backups", h.create)
	router.Get("/backups/:name/download", h.download)
	router.Post("/backups/restore", h.restoreUpload)
	router.Post("/backups/:name/restore", h.restore)
	router.Post("/reset", h.reset)
}

func (h *BackupHandler) list(c *fiber.Ctx) error {
	backups, err := h.service.List(c.Context(), actorFromCtx(c))
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "backups retrieved", backups)
}

func (h *BackupHandler) create(c *fiber.Ctx) error {
	info, err := h.service.Create(c.Context(), actorFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendCreated(c, "backup created", info)
}

func (h *BackupHandler) download(c *fiber.Ctx) error {
	path, err := h.service.ArchivePath(c.Params("name"))
	if err != nil {
		return h.handleError(c, err)
	}
	return c.Download(path)
}

func (h *BackupHandler) restore(c *fiber.Ctx) error {
	var payload dto.ConfirmRequest
	if err := c.BodyParser(&payload); err != nil || payload.Confirm != confirmRestore {
		return utils.SendError(c, fiber.StatusBadRequest, "restore must be confirmed with RESTORE")
	}

	result, err := h.service.Restore(c.Context(), actorFromCtx(c), c.Params("name"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "backup restored, restart the service to reload the database", result)
}

func (h *BackupHandler) restoreUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "a backup archive must be attached as 'file'")
	}

	result, err := h.service.RestoreUpload(c.Context(), actorFromCtx(c), file)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "backup restored, restart the service to reload the database", result)
}

func (h *BackupHandler) reset(c *fiber.Ctx) error {
	var payload dto.ConfirmRequest
	if err := c.BodyParser(&payload); err != nil || payload.Confirm != confirmReset {
		return utils.SendError(c, fiber.StatusBadRequest, "reset must be confirmed with RESET")
	}

	result, err := h.service.Purge(c.Context(), actorFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "factory reset complete", result)
}

func (h *BackupHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrBackupNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "backup not found")
	case errors.Is(err, service.ErrBackupNameInvalid):
		return utils.SendError(c, fiber.StatusBadRequest, "invalid backup name")
	case errors.Is(err, service.ErrBackupUnsupported):
		return utils.SendError(c, fiber.StatusBadRequest, "backups require a sqlite database")
	case errors.Is(err, service.ErrManifestInvalid):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *BackupHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
