package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/observability"
)

// StandingCache is a read-through Redis cache of learner standings. A nil
// client disables caching.
type StandingCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewStandingCache builds the cache.
func NewStandingCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *StandingCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StandingCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "standing_cache").Logger(),
	}
}

// noGeneration tells Set not to write because the generation was unreadable.
const noGeneration int64 = -1

var errStaleStanding = errors.New("standing changed while it was being computed")

func standingCacheKey(learnerID uint) string {
	return fmt.Sprintf("standing:learner:%d", learnerID)
}

// standingGenerationKey counts invalidations of a learner's standing. It has
// no TTL so a reader can always tell whether a change happened during its read.
func standingGenerationKey(learnerID uint) string {
	return fmt.Sprintf("standing:learner:%d:gen", learnerID)
}

// Generation returns the learner's current invalidation counter. Pass it to
// Set once the standing has been computed.
func (c *StandingCache) Generation(ctx context.Context, learnerID uint) int64 {
	if c == nil || c.client == nil {
		return noGeneration
	}

	generation, err := c.client.Get(ctx, standingGenerationKey(learnerID)).Int64()
	switch {
	case err == nil:
		return generation
	case errors.Is(err, redis.Nil):
		return 0
	default:
		c.logger.Warn().Err(err).Uint("learner_id", learnerID).Msg("failed to read standing generation")
		return noGeneration
	}
}

// Get returns the cached standing, if any.
func (c *StandingCache) Get(ctx context.Context, learnerID uint) (dto.LearnerStandingResponse, bool) {
	if c == nil || c.client == nil {
		return dto.LearnerStandingResponse{}, false
	}

	cached, err := c.client.Get(ctx, standingCacheKey(learnerID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read standing cache")
		}
		observability.StandingCache().WithLabelValues("miss").Inc()
		return dto.LearnerStandingResponse{}, false
	}

	var response dto.LearnerStandingResponse
	if err := json.Unmarshal([]byte(cached), &response); err != nil {
		c.logger.Warn().Err(err).Uint("learner_id", learnerID).Msg("discarding malformed standing cache entry")
		observability.StandingCache().WithLabelValues("miss").Inc()
		return dto.LearnerStandingResponse{}, false
	}

	observability.StandingCache().WithLabelValues("hit").Inc()
	c.logger.Debug().Uint("learner_id", learnerID).Msg("standing cache hit")
	return response, true
}

// Set stores a freshly computed standing, unless the learner was invalidated
// after generation was read. The check and the write run under WATCH so an
// Invalidate landing in between aborts the write.
func (c *StandingCache) Set(ctx context.Context, learnerID uint, generation int64, response dto.LearnerStandingResponse) {
	if c == nil || c.client == nil || generation == noGeneration {
		return
	}

	payload, err := json.Marshal(response)
	if err != nil {
		return
	}

	genKey := standingGenerationKey(learnerID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errStaleStanding
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, standingCacheKey(learnerID), payload, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleStanding), errors.Is(err, redis.TxFailedErr):
		observability.StandingCache().WithLabelValues("stale").Inc()
		c.logger.Debug().Uint("learner_id", learnerID).Msg("skipped caching standing invalidated during read")
	default:
		c.logger.Warn().Err(err).Uint("learner_id", learnerID).Msg("failed to store standing cache")
	}
}

// Invalidate bumps the learner's generation and drops the cached standing
// after a committed change.
func (c *StandingCache) Invalidate(ctx context.Context, learnerID uint) {
	if c == nil || c.client == nil {
		return
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, standingGenerationKey(learnerID))
		pipe.Del(ctx, standingCacheKey(learnerID))
		return nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Uint("learner_id", learnerID).Msg("failed to invalidate standing cache")
	}
}
