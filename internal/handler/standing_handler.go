package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/gamification"
	"github.com/noah-isme/gema-progress-api/internal/middleware"
	"github.com/noah-isme/gema-progress-api/internal/service"
	"github.com/noah-isme/gema-progress-api/internal/utils"
)

// StandingHandler serves learner standings and the milestone catalog.
type StandingHandler struct {
	service service.StandingService
	logger  zerolog.Logger
}

// NewStandingHandler constructs the standing handler.
func NewStandingHandler(service service.StandingService, logger zerolog.Logger) *StandingHandler {
	return &StandingHandler{
		service: service,
		logger:  logger.With().Str("component", "standing_handler").Logger(),
	}
}

// Register wires standing and milestone routes.
func (h *StandingHandler) Register(router fiber.Router) {
	router.Get("/me/standing", h.mine)
	router.Get("/learners/:id/standing", h.learner)
	router.Get("/milestones", h.milestones)
}

func (h *StandingHandler) mine(c *fiber.Ctx) error {
	learnerID, ok := middleware.CurrentUserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}
	return h.respond(c, learnerID)
}

func (h *StandingHandler) learner(c *fiber.Ctx) error {
	learnerID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid learner identifier")
	}

	if !middleware.IsAdmin(c) {
		if current, _ := middleware.CurrentUserID(c); current != learnerID {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
	}
	return h.respond(c, learnerID)
}

func (h *StandingHandler) respond(c *fiber.Ctx, learnerID uint) error {
	standing, err := h.service.GetLearnerStanding(c.UserContext(), learnerID)
	if err != nil {
		logger := requestLogger(h.logger, c)
		return sendDomainError(c, logger, err, "failed to load standing")
	}

	return utils.SendSuccess(c, "standing retrieved", standing)
}

func (h *StandingHandler) milestones(c *fiber.Ctx) error {
	catalog := dto.NewMilestoneCatalogResponse(gamification.MilestoneCatalog())
	return utils.SendSuccess(c, "milestones retrieved", catalog)
}
