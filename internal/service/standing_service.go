package service

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/gamification"
	"github.com/noah-isme/gema-progress-api/internal/models"
	"github.com/noah-isme/gema-progress-api/internal/repository"
)

// StandingService produces a learner's aggregate progress.
type StandingService interface {
	GetLearnerStanding(ctx context.Context, learnerID uint) (dto.LearnerStandingResponse, error)
}

type standingService struct {
	store  repository.Store
	cache  *StandingCache
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewStandingService builds the standing reader.
func NewStandingService(store repository.Store, cache *StandingCache, logger zerolog.Logger) StandingService {
	return &standingService{
		store:  store,
		cache:  cache,
		logger: logger.With().Str("component", "standing_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/gema-progress-api/internal/service/standing"),
	}
}

func (s *standingService) GetLearnerStanding(ctx context.Context, learnerID uint) (dto.LearnerStandingResponse, error) {
	ctx, span := s.tracer.Start(ctx, "standing.get")
	defer span.End()
	span.SetAttributes(attribute.Int64("standing.learner_id", int64(learnerID)))

	if cached, ok := s.cache.Get(ctx, learnerID); ok {
		span.SetAttributes(attribute.Bool("standing.cache_hit", true))
		return cached, nil
	}

	// Taken before any row is read so a decision committing mid-read makes
	// the cache refuse this result.
	generation := s.cache.Generation(ctx, learnerID)

	learner, err := s.store.Learners().GetByID(ctx, learnerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "learner_lookup_failed")
		return dto.LearnerStandingResponse{}, storageError("load learner", err)
	}

	badges, err := s.store.Badges().ListByLearner(ctx, learnerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "badge_lookup_failed")
		return dto.LearnerStandingResponse{}, storageError("list badges", err)
	}

	submissions, err := s.store.Submissions().List(ctx, repository.SubmissionFilter{LearnerID: &learnerID})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.LearnerStandingResponse{}, storageError("list submissions", err)
	}

	totalActivities, err := s.store.Activities().Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog_count_failed")
		return dto.LearnerStandingResponse{}, storageError("count activities", err)
	}

	response := buildStanding(learner, badges, submissions, int(totalActivities))
	if response.TotalScore != learner.TotalScore {
		s.logger.Warn().
			Uint("learner_id", learnerID).
			Int64("stored_total", learner.TotalScore).
			Int64("badge_total", response.TotalScore).
			Msg("learner total differs from badges read, serving badge total")
	}
	s.cache.Set(ctx, learnerID, generation, response)

	return response, nil
}

// buildStanding derives the total and level from the badge rows it is given,
// so the response always satisfies total == sum of badge points even when the
// learner row was read before a concurrent decision committed.
func buildStanding(learner models.Learner, badges []models.ScoreBadge, submissions []models.Submission, totalActivities int) dto.LearnerStandingResponse {
	history := make([]gamification.SubmissionFact, 0, len(submissions))
	for _, submission := range submissions {
		history = append(history, gamification.FactFromSubmission(submission))
	}

	catalog := make(map[gamification.MilestoneID]gamification.Milestone)
	for _, milestone := range gamification.MilestoneCatalog() {
		catalog[milestone.ID] = milestone
	}

	earned := gamification.EvaluateMilestones(history, totalActivities)
	milestones := make([]dto.MilestoneResponse, 0, len(earned))
	for _, id := range earned {
		milestones = append(milestones, dto.NewMilestoneResponse(catalog[id]))
	}

	var total int64
	scoreBadges := make([]dto.ScoreBadgeResponse, 0, len(badges))
	for _, badge := range badges {
		total += int64(badge.Points)
		scoreBadges = append(scoreBadges, dto.NewScoreBadgeResponse(badge))
	}

	response := dto.LearnerStandingResponse{
		LearnerID:        learner.ID,
		Name:             learner.Name,
		TotalScore:       total,
		Level:            string(gamification.LevelForScore(total)),
		EarnedMilestones: milestones,
		ScoreBadges:      scoreBadges,
	}
	if next, remaining, ok := gamification.NextLevel(total); ok {
		response.NextLevel = string(next)
		response.PointsToNextLevel = remaining
	}

	return response
}
