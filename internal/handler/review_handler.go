package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/gamification"
	"github.com/noah-isme/gema-progress-api/internal/models"
	"github.com/noah-isme/gema-progress-api/internal/service"
	"github.com/noah-isme/gema-progress-api/internal/utils"
)

// ReviewHandler exposes reviewer decisions and standing repair for admins.
type ReviewHandler struct {
	reviews    service.ReviewService
	aggregator service.ScoreAggregator
	validator  *validator.Validate
	logger     zerolog.Logger
}

// NewReviewHandler constructs the admin review handler.
func NewReviewHandler(reviews service.ReviewService, aggregator service.ScoreAggregator, validate *validator.Validate, logger zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviews:    reviews,
		aggregator: aggregator,
		validator:  validate,
		logger:     logger.With().Str("component", "review_handler").Logger(),
	}
}

// Register attaches admin endpoints to the router group.
func (h *ReviewHandler) Register(router fiber.Router) {
	router.Post("/submissions/:id/decisions", h.decide)
	router.Post("/learners/:id/reconcile", h.reconcile)
}

func (h *ReviewHandler) decide(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission identifier")
	}

	var payload dto.DecisionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	payload.Action = strings.ToLower(strings.TrimSpace(payload.Action))
	payload.ExpectedStatus = strings.ToUpper(strings.TrimSpace(payload.ExpectedStatus))
	if key := strings.TrimSpace(c.Get("Idempotency-Key")); key != "" {
		if payload.DecisionID != "" && payload.DecisionID != key {
			return utils.SendError(c, fiber.StatusBadRequest, "Idempotency-Key header and decision_id differ")
		}
		payload.DecisionID = key
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	}

	decision := gamification.Decision{
		Kind:     models.DecisionKind(strings.ToUpper(payload.Action)),
		Score:    payload.Score,
		Feedback: payload.Feedback,
	}
	input := service.ApplyDecisionInput{
		SubmissionID: id,
		Decision:     decision,
		DecisionID:   payload.DecisionID,
		Actor:        actorFromContext(c),
	}
	if payload.ExpectedStatus != "" {
		expected := models.SubmissionStatus(payload.ExpectedStatus)
		input.ExpectedStatus = &expected
	}

	result, err := h.reviews.ApplyDecision(c.UserContext(), input)
	if err != nil {
		logger := requestLogger(h.logger, c)
		return sendDomainError(c, logger, err, "failed to apply decision")
	}

	response := dto.DecisionResponse{
		DecisionID:   result.DecisionID,
		SubmissionID: result.SubmissionID,
		Status:       string(result.Status),
		TotalScore:   result.TotalScore,
		Level:        string(result.Level),
		Replayed:     result.Replayed,
	}
	if result.Replayed {
		return utils.SendSuccess(c, "decision already applied", response)
	}
	return utils.SendSuccess(c, "decision applied", response)
}

func (h *ReviewHandler) reconcile(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid learner identifier")
	}

	result, err := h.aggregator.Reconcile(c.UserContext(), id, actorFromContext(c))
	if err != nil {
		logger := requestLogger(h.logger, c)
		return sendDomainError(c, logger, err, "failed to reconcile standing")
	}

	message := "standing consistent"
	if result.Drift {
		message = "standing repaired"
	}
	return utils.SendSuccess(c, message, result)
}
