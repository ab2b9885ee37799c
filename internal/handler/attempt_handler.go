package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/examdesk/examdesk-api/internal/dto"
	"github.com/examdesk/examdesk-api/internal/service"
	"github.com/examdesk/examdesk-api/internal/utils"
)

// AttemptHandler wires the student exam-taking routes.
type AttemptHandler struct {
	service service.AttemptService
	logger  zerolog.Logger
}

// NewAttemptHandler constructs the handler.
func NewAttemptHandler(service service.AttemptService, logger zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		service: service,
		logger:  logger.With().Str("component", "attempt_handler").Logger(),
	}
}

// Register attaches attempt endpoints to the router group.
func (h *AttemptHandler) Register(router fiber.Router) {
	router.Get("/exams", h.dashboard)
	router.Post("/exams/:id/attempts", h.start)
	router.Get("/attempts/:id/questions/:index", h.question)
	router.Put("/attempts/:id/questions/:qid/answers", h.saveAnswers)
	router.Get("/attempts/:id/review", h.review)
	router.Post("/attempts/:id/submit", h.submit)
	router.Get("/attempts/:id/result", h.result)
}

func (h *AttemptHandler) dashboard(c *fiber.Ctx) error {
	views, err := h.service.Dashboard(c.Context(), actorFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "exams retrieved", views)
}

func (h *AttemptHandler) start(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	attempt, err := h.service.Start(c.Context(), examID, actorFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendCreated(c, "attempt started", attempt)
}

func (h *AttemptHandler) question(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	index, err := c.ParamsInt("index")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid question index")
	}

	resp, err := h.service.Question(c.Context(), attemptID, index, actorFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "question retrieved", resp)
}

func (h *AttemptHandler) saveAnswers(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	questionID, err := parseUintParam(c, "qid")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SaveAnswersRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.SaveAnswers(c.Context(), attemptID, questionID, actorFromCtx(c), payload); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "answers saved", nil)
}

func (h *AttemptHandler) review(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	resp, err := h.service.Review(c.Context(), attemptID, actorFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "review retrieved", resp)
}

func (h *AttemptHandler) submit(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.Submit(c.Context(), attemptID, actorFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "attempt submitted", result)
}

func (h *AttemptHandler) result(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.Result(c.Context(), attemptID, actorFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "result retrieved", result)
}

func (h *AttemptHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exam not found")
	case errors.Is(err, service.ErrAttemptNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "attempt not found")
	case errors.Is(err, service.ErrExamForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "exam is not assigned to you")
	case errors.Is(err, service.ErrExamNotStartable):
		return utils.SendError(c, fiber.StatusConflict, "exam is not open for taking")
	case errors.Is(err, service.ErrAttemptSubmitted):
		return utils.SendError(c, fiber.StatusConflict, "attempt already submitted")
	case errors.Is(err, service.ErrAttemptExpired):
		return utils.SendError(c, fiber.StatusConflict, "attempt time expired and was submitted")
	case errors.Is(err, service.ErrQuestionIndexInvalid):
		return utils.SendError(c, fiber.StatusBadRequest, "question index out of range")
	case errors.Is(err, service.ErrAnswerInvalid):
		return utils.SendError(c, fiber.StatusBadRequest, "choice does not belong to question")
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
