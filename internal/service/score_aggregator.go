package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/gamification"
	"github.com/noah-isme/gema-progress-api/internal/models"
	"github.com/noah-isme/gema-progress-api/internal/observability"
	"github.com/noah-isme/gema-progress-api/internal/repository"
)

// Standing is a learner's derived total score and level.
type Standing struct {
	TotalScore int64
	Level      models.LearnerLevel
}

// ScoreAggregator derives learner standings from score badges.
type ScoreAggregator interface {
	// Recompute sums the learner's badges and stores the total and level
	// through tx. It must run inside the caller's transaction.
	Recompute(ctx context.Context, tx repository.Store, learnerID uint) (Standing, error)
	Reconcile(ctx context.Context, learnerID uint, actor Actor) (dto.ReconcileResponse, error)
	ReconcileAll(ctx context.Context, actor Actor) ([]dto.ReconcileResponse, error)
}

type scoreAggregator struct {
	store  repository.Store
	locks  *LearnerLocks
	cache  *StandingCache
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewScoreAggregator constructs the aggregator.
func NewScoreAggregator(store repository.Store, locks *LearnerLocks, cache *StandingCache, logger zerolog.Logger) ScoreAggregator {
	if locks == nil {
		locks = NewLearnerLocks()
	}
	return &scoreAggregator{
		store:  store,
		locks:  locks,
		cache:  cache,
		logger: logger.With().Str("component", "score_aggregator").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/gema-progress-api/internal/service/score_aggregator"),
	}
}

func (a *scoreAggregator) Recompute(ctx context.Context, tx repository.Store, learnerID uint) (Standing, error) {
	ctx, span := a.tracer.Start(ctx, "standing.recompute")
	defer span.End()
	span.SetAttributes(attribute.Int64("standing.learner_id", int64(learnerID)))

	start := time.Now()
	defer func() {
		observability.RecomputeLatency().Observe(time.Since(start).Seconds())
	}()

	total, err := tx.Badges().SumPoints(ctx, learnerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sum_failed")
		return Standing{}, storageError("sum badge points", err)
	}

	standing := Standing{TotalScore: total, Level: gamification.LevelForScore(total)}
	if err := tx.Learners().UpdateStanding(ctx, learnerID, standing.TotalScore, standing.Level); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update_failed")
		return Standing{}, storageError("update standing", err)
	}

	span.SetAttributes(
		attribute.Int64("standing.total_score", standing.TotalScore),
		attribute.String("standing.level", string(standing.Level)),
	)
	return standing, nil
}

func (a *scoreAggregator) Reconcile(ctx context.Context, learnerID uint, actor Actor) (dto.ReconcileResponse, error) {
	ctx, span := a.tracer.Start(ctx, "standing.reconcile")
	defer span.End()
	span.SetAttributes(attribute.Int64("standing.learner_id", int64(learnerID)))

	unlock := a.locks.Lock(learnerID)
	defer unlock()

	var response dto.ReconcileResponse
	err := a.store.WithinTransaction(context.WithoutCancel(ctx), func(ctx context.Context, tx repository.Store) error {
		learner, err := tx.Learners().GetForUpdate(ctx, learnerID)
		if err != nil {
			return storageError("load learner", err)
		}

		standing, err := a.Recompute(ctx, tx, learnerID)
		if err != nil {
			return err
		}

		response = dto.ReconcileResponse{
			LearnerID:     learnerID,
			PreviousTotal: learner.TotalScore,
			PreviousLevel: string(learner.Level),
			TotalScore:    standing.TotalScore,
			Level:         string(standing.Level),
			Drift:         learner.TotalScore != standing.TotalScore || learner.Level != standing.Level,
		}
		if !response.Drift {
			return nil
		}

		entry, err := newAuditLog(AuditEntry{
			Actor:      actor,
			Action:     "standing.reconciled",
			EntityType: "learner",
			EntityID:   &learnerID,
			Metadata: map[string]interface{}{
				"previous_total": learner.TotalScore,
				"previous_level": string(learner.Level),
				"total_score":    standing.TotalScore,
				"level":          string(standing.Level),
			},
		})
		if err != nil {
			return err
		}
		return storageError("record audit log", tx.AuditLogs().Create(ctx, &entry))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile_failed")
		return dto.ReconcileResponse{}, storageError("reconcile standing", err)
	}

	if response.Drift {
		observability.StandingDrift().Inc()
		a.cache.Invalidate(context.WithoutCancel(ctx), learnerID)
		a.logger.Warn().
			Uint("learner_id", learnerID).
			Int64("previous_total", response.PreviousTotal).
			Int64("total_score", response.TotalScore).
			Msg("repaired standing drift")
	}
	span.SetAttributes(attribute.Bool("standing.drift", response.Drift))

	return response, nil
}

func (a *scoreAggregator) ReconcileAll(ctx context.Context, actor Actor) ([]dto.ReconcileResponse, error) {
	ids, err := a.store.Learners().ListIDs(ctx)
	if err != nil {
		return nil, storageError("list learners", err)
	}

	results := make([]dto.ReconcileResponse, 0, len(ids))
	var failures []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}

		result, err := a.Reconcile(ctx, id, actor)
		if err != nil {
			a.logger.Error().Err(err).Uint("learner_id", id).Msg("failed to reconcile learner")
			failures = append(failures, err)
			continue
		}
		results = append(results, result)
	}

	return results, errors.Join(failures...)
}
