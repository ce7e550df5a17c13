package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-progress-api/internal/gamification"
	"github.com/noah-isme/gema-progress-api/internal/models"
	"github.com/noah-isme/gema-progress-api/internal/observability"
	"github.com/noah-isme/gema-progress-api/internal/repository"
)

// errDecisionRace rolls back a transaction that lost the insert race on its
// decision id; the winner's record is then replayed.
var errDecisionRace = errors.New("decision id inserted concurrently")

// ApplyDecisionInput is a reviewer decision on one submission.
type ApplyDecisionInput struct {
	SubmissionID uint
	Decision     gamification.Decision
	// DecisionID is the idempotency token. A fresh one is generated when empty.
	DecisionID string
	// ExpectedStatus, when set, must equal the stored status or the decision
	// fails with ErrConcurrentModification.
	ExpectedStatus *models.SubmissionStatus
	Actor          Actor
}

// DecisionResult reports the state after a decision.
type DecisionResult struct {
	DecisionID   string
	SubmissionID uint
	Status       models.SubmissionStatus
	TotalScore   int64
	Level        models.LearnerLevel
	Replayed     bool
}

// ReviewService applies reviewer decisions and keeps standings consistent.
type ReviewService interface {
	ApplyDecision(ctx context.Context, input ApplyDecisionInput) (DecisionResult, error)
}

type reviewService struct {
	store      repository.Store
	aggregator ScoreAggregator
	locks      *LearnerLocks
	cache      *StandingCache
	publisher  DecisionPublisher
	sanitizer  *bluemonday.Policy
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewReviewService constructs the decision coordinator. publisher may be nil.
func NewReviewService(store repository.Store, aggregator ScoreAggregator, locks *LearnerLocks, cache *StandingCache, publisher DecisionPublisher, logger zerolog.Logger) ReviewService {
	if locks == nil {
		locks = NewLearnerLocks()
	}
	return &reviewService{
		store:      store,
		aggregator: aggregator,
		locks:      locks,
		cache:      cache,
		publisher:  publisher,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     logger.With().Str("component", "review_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/gema-progress-api/internal/service/review"),
		now:        time.Now,
	}
}

func (s *reviewService) ApplyDecision(ctx context.Context, input ApplyDecisionInput) (DecisionResult, error) {
	ctx, span := s.tracer.Start(ctx, "review.apply_decision")
	defer span.End()

	decision := input.Decision
	decision.Feedback = strings.TrimSpace(s.sanitizer.Sanitize(decision.Feedback))
	if decision.Kind == models.DecisionReject {
		decision.Score = nil
	}
	decisionID := strings.TrimSpace(input.DecisionID)
	if decisionID == "" {
		decisionID = uuid.NewString()
	}
	kind := strings.ToLower(string(decision.Kind))

	span.SetAttributes(
		attribute.Int64("review.submission_id", int64(input.SubmissionID)),
		attribute.Int64("review.actor_id", int64(input.Actor.ID)),
		attribute.String("review.kind", kind),
		attribute.String("review.decision_id", decisionID),
	)

	fail := func(status string, err error) (DecisionResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		outcome := "rejected"
		if errors.Is(err, gamification.ErrStorageFailure) {
			outcome = "failed"
		}
		observability.Decisions().WithLabelValues(kind, outcome).Inc()
		return DecisionResult{}, err
	}

	if result, ok, err := s.replay(ctx, s.store, decisionID, input.SubmissionID, decision); err != nil {
		return fail("replay_lookup_failed", err)
	} else if ok {
		return s.replayed(span, result), nil
	}

	target, err := s.store.Submissions().GetByID(ctx, input.SubmissionID)
	if err != nil {
		return fail("submission_lookup_failed", storageError("load submission", err))
	}
	learnerID := target.LearnerID

	unlock := s.locks.Lock(learnerID)
	defer unlock()

	var (
		result DecisionResult
		event  DecisionEvent
	)
	txErr := s.store.WithinTransaction(context.WithoutCancel(ctx), func(ctx context.Context, tx repository.Store) error {
		replayResult, ok, err := s.replay(ctx, tx, decisionID, input.SubmissionID, decision)
		if err != nil {
			return err
		}
		if ok {
			result = replayResult
			return nil
		}

		if _, err := tx.Learners().GetForUpdate(ctx, learnerID); err != nil {
			return storageError("lock learner", err)
		}

		submission, err := tx.Submissions().GetForUpdate(ctx, input.SubmissionID)
		if err != nil {
			return storageError("load submission", err)
		}

		current := gamification.CurrentStatus(&submission)
		if input.ExpectedStatus != nil && *input.ExpectedStatus != current {
			return fmt.Errorf("%w: expected %s, found %s", gamification.ErrConcurrentModification, *input.ExpectedStatus, current)
		}

		now := s.now()
		transition, err := gamification.Review(&submission, submission.Activity, decision, input.Actor.ID, now)
		if err != nil {
			return err
		}

		if err := tx.Submissions().UpdateVersioned(ctx, &submission); err != nil {
			return storageError("update submission", err)
		}

		switch transition.Badge {
		case gamification.BadgeUpsert:
			badge := models.ScoreBadge{
				LearnerID:  learnerID,
				ActivityID: submission.ActivityID,
				Points:     *submission.Score,
				EarnedAt:   now,
			}
			if err := tx.Badges().Upsert(ctx, &badge); err != nil {
				return storageError("upsert badge", err)
			}
		case gamification.BadgeRemove:
			if err := tx.Badges().Delete(ctx, learnerID, submission.ActivityID); err != nil {
				return storageError("delete badge", err)
			}
		case gamification.BadgeUnchanged:
		}

		standing, err := s.aggregator.Recompute(ctx, tx, learnerID)
		if err != nil {
			return err
		}

		record := models.DecisionRecord{
			DecisionID:   decisionID,
			SubmissionID: submission.ID,
			LearnerID:    learnerID,
			Kind:         decision.Kind,
			Score:        decision.Score,
			Feedback:     decision.Feedback,
			ActorID:      input.Actor.ID,
			ResultStatus: submission.Status,
			TotalScore:   standing.TotalScore,
			Level:        standing.Level,
			AppliedAt:    now,
		}
		if err := tx.Decisions().Create(ctx, &record); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errDecisionRace
			}
			return storageError("record decision", err)
		}

		metadata := map[string]interface{}{
			"decision_id": decisionID,
			"learner_id":  learnerID,
			"activity_id": submission.ActivityID,
			"from_status": string(transition.From),
			"to_status":   string(transition.To),
			"badge":       transition.Badge.String(),
			"total_score": standing.TotalScore,
			"level":       string(standing.Level),
		}
		if submission.Score != nil {
			metadata["score"] = *submission.Score
		}
		entry, err := newAuditLog(AuditEntry{
			Actor:      input.Actor,
			Action:     "submission." + kind,
			EntityType: "submission",
			EntityID:   &submission.ID,
			Metadata:   metadata,
		})
		if err != nil {
			return err
		}
		if err := tx.AuditLogs().Create(ctx, &entry); err != nil {
			return storageError("record audit log", err)
		}

		result = DecisionResult{
			DecisionID:   decisionID,
			SubmissionID: submission.ID,
			Status:       submission.Status,
			TotalScore:   standing.TotalScore,
			Level:        standing.Level,
		}
		event = DecisionEvent{
			EventID:      uuid.NewString(),
			DecisionID:   decisionID,
			SubmissionID: submission.ID,
			LearnerID:    learnerID,
			ActivityID:   submission.ActivityID,
			Kind:         string(decision.Kind),
			Status:       string(submission.Status),
			Score:        submission.Score,
			TotalScore:   standing.TotalScore,
			Level:        string(standing.Level),
			OccurredAt:   now,
		}
		return nil
	})

	if errors.Is(txErr, errDecisionRace) {
		replayResult, ok, err := s.replay(ctx, s.store, decisionID, input.SubmissionID, decision)
		if err != nil {
			return fail("replay_lookup_failed", err)
		}
		if ok {
			return s.replayed(span, replayResult), nil
		}
		txErr = fmt.Errorf("decision %s: %w", decisionID, gamification.ErrConcurrentModification)
	}
	if txErr != nil {
		return fail("decision_failed", storageError("apply decision", txErr))
	}
	if result.Replayed {
		return s.replayed(span, result), nil
	}

	s.afterCommit(context.WithoutCancel(ctx), learnerID, event)

	observability.Decisions().WithLabelValues(kind, "applied").Inc()
	span.SetAttributes(
		attribute.String("review.status", string(result.Status)),
		attribute.Int64("review.total_score", result.TotalScore),
	)
	s.logger.Info().
		Str("decision_id", decisionID).
		Uint("submission_id", result.SubmissionID).
		Uint("learner_id", learnerID).
		Str("status", string(result.Status)).
		Int64("total_score", result.TotalScore).
		Msg("decision applied")

	return result, nil
}

// replay returns the stored result for decisionID. A token that was used for a
// different submission or payload is an ErrDecisionMismatch.
func (s *reviewService) replay(ctx context.Context, store repository.Store, decisionID string, submissionID uint, decision gamification.Decision) (DecisionResult, bool, error) {
	record, err := store.Decisions().GetByDecisionID(ctx, decisionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DecisionResult{}, false, nil
	}
	if err != nil {
		return DecisionResult{}, false, storageError("load decision", err)
	}

	if record.SubmissionID != submissionID || record.Kind != decision.Kind || !sameScore(record.Score, decision.Score) || record.Feedback != decision.Feedback {
		return DecisionResult{}, false, fmt.Errorf("%w: %s", gamification.ErrDecisionMismatch, decisionID)
	}

	return DecisionResult{
		DecisionID:   record.DecisionID,
		SubmissionID: record.SubmissionID,
		Status:       record.ResultStatus,
		TotalScore:   record.TotalScore,
		Level:        record.Level,
		Replayed:     true,
	}, true, nil
}

func (s *reviewService) replayed(span trace.Span, result DecisionResult) DecisionResult {
	observability.DecisionReplays().Inc()
	span.SetAttributes(attribute.Bool("review.replayed", true))
	s.logger.Debug().Str("decision_id", result.DecisionID).Msg("decision replayed")
	return result
}

func (s *reviewService) afterCommit(ctx context.Context, learnerID uint, event DecisionEvent) {
	s.cache.Invalidate(ctx, learnerID)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishDecision(ctx, event); err != nil {
		observability.EventPublishFailures().Inc()
		s.logger.Warn().Err(err).Str("decision_id", event.DecisionID).Msg("failed to publish decision event")
	}
}

func sameScore(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
