package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/examdesk/examdesk-api/internal/dto"
	"github.com/examdesk/examdesk-api/internal/service"
	"github.com/examdesk/examdesk-api/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExamHandler wires instructor exam management routes.
type ExamHandler struct {
	service     service.ExamService
	spreadsheet service.SpreadsheetService
	logger      zerolog.Logger
}

// NewExamHandler constructs the handler.
func NewExamHandler(service service.ExamService, spreadsheet service.SpreadsheetService, logger zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		service:     service,
		spreadsheet: spreadsheet,
		logger:      logger.With().Str("component", "exam_handler").Logger(),
	}
}

// Register attaches exam endpoints to the router group.
func (h *ExamHandler) Register(router fiber.Router) {
	router.Get("/exams", h.list)
	router.Get("/exams/template", h.template)
	router.Get("/exams/:id", h.get)
	router.Post("/exams", h.create)
	router.Patch("/exams/:id", h.update)
	router.Delete("/exams/:id", h.delete)
	router.Post("/exams/:id/close", h.close)
	router.Post("/exams/:id/reopen", h.reopen)
	router.Get("/exams/:id/results", h.results)
	router.Get("/exams/:id/export", h.export)
	router.Post("/exams/:id/import", h.importSheet)
}

func (h *ExamHandler) list(c *fiber.Ctx) error {
	exams, err := h.service.List(c.Context(), actorFromCtx(c))
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "exams retrieved", exams)
}

func (h *ExamHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	exam, questions, err := h.service.GetWithQuestions(c.Context(), id, actorFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "exam retrieved", fiber.Map{"exam": exam, "questions": questions})
}

func (h *ExamHandler) create(c *fiber.Ctx) error {
	var payload dto.ExamCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	exam, err := h.service.Create(c.Context(), actorFromCtx(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendCreated(c, "exam created", exam)
}

func (h *ExamHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ExamUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	exam, err := h.service.Update(c.Context(), id, actorFromCtx(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "exam updated", exam)
}

func (h *ExamHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.Context(), id, actorFromCtx(c), c.Query("note")); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "exam deleted", fiber.Map{"id": id})
}

func (h *ExamHandler) close(c *fiber.Ctx) error {
	return h.setClosed(c, true, "exam closed")
}

func (h *ExamHandler) reopen(c *fiber.Ctx) error {
	return h.setClosed(c, false, "exam reopened")
}

func (h *ExamHandler) setClosed(c *fiber.Ctx, closed bool, message string) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	exam, err := h.service.SetClosed(c.Context(), id, actorFromCtx(c), closed)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, message, exam)
}

func (h *ExamHandler) results(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	results, err := h.service.Results(c.Context(), id, actorFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "results retrieved", results)
}

func (h *ExamHandler) template(c *fiber.Ctx) error {
	data, err := h.spreadsheet.Template(c.Context())
	if err != nil {
		return h.internalError(c, err)
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="question_template.xlsx"`)
	return c.Send(data)
}

func (h *ExamHandler) export(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	data, name, err := h.spreadsheet.Export(c.Context(), id, actorFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Send(data)
}

func (h *ExamHandler) importSheet(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "spreadsheet file is required")
	}

	fromRow := c.QueryInt("from_row", 0)
	toRow := c.QueryInt("to_row", 0)

	report, err := h.spreadsheet.Import(c.Context(), id, actorFromCtx(c), file, fromRow, toRow)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "questions imported", report)
}

func (h *ExamHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exam not found")
	case errors.Is(err, service.ErrExamForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "exam belongs to another instructor")
	case errors.Is(err, service.ErrExamWindowInvalid),
		errors.Is(err, service.ErrSheetHeaderInvalid),
		errors.Is(err, service.ErrSheetEmpty),
		errors.Is(err, service.ErrSheetRowInvalid):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *ExamHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
