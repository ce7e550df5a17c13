package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/middleware"
	"github.com/noah-isme/gema-progress-api/internal/service"
	"github.com/noah-isme/gema-progress-api/internal/utils"
)

// SubmissionHandler exposes the learner submission endpoints.
type SubmissionHandler struct {
	service   service.SubmissionService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSubmissionHandler constructs a submission handler.
func NewSubmissionHandler(service service.SubmissionService, validate *validator.Validate, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register wires the listing routes. The submit route is mounted separately
// so that it can carry its own rate limiter.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("/submissions", h.list)
	router.Get("/submissions/:id", h.get)
}

// Submit handles POST /activities/:id/submission.
func (h *SubmissionHandler) Submit(c *fiber.Ctx) error {
	activityID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity identifier")
	}

	learnerID, ok := middleware.CurrentUserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	var payload dto.SubmitRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	}

	submission, err := h.service.Submit(c.UserContext(), service.SubmitInput{
		LearnerID:      learnerID,
		ActivityID:     activityID,
		AttachmentRefs: payload.AttachmentRefs,
		Notes:          payload.Notes,
	})
	if err != nil {
		logger := requestLogger(h.logger, c)
		return sendDomainError(c, logger, err, "failed to submit activity")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission received", submission)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	var filter dto.SubmissionFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	if !middleware.IsAdmin(c) {
		learnerID, ok := middleware.CurrentUserID(c)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		filter.LearnerID = &learnerID
	}

	submissions, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		logger := requestLogger(h.logger, c)
		return sendDomainError(c, logger, err, "failed to list submissions")
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission identifier")
	}

	submission, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		logger := requestLogger(h.logger, c)
		return sendDomainError(c, logger, err, "failed to load submission")
	}

	if !middleware.IsAdmin(c) {
		learnerID, _ := middleware.CurrentUserID(c)
		if submission.LearnerID != learnerID {
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		}
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}
