package service

import (
	"context"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-progress-api/internal/gamification"
	"github.com/noah-isme/gema-progress-api/internal/models"
	"github.com/noah-isme/gema-progress-api/internal/repository"
	"github.com/noah-isme/gema-progress-api/internal/testutil"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type publisherStub struct {
	mu     sync.Mutex
	events []DecisionEvent
	err    error
}

func (p *publisherStub) PublishDecision(ctx context.Context, event DecisionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *publisherStub) published() []DecisionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]DecisionEvent(nil), p.events...)
}

type fixture struct {
	db          *gorm.DB
	store       repository.Store
	locks       *LearnerLocks
	cache       *StandingCache
	aggregator  ScoreAggregator
	submissions SubmissionService
	reviews     ReviewService
	standings   StandingService
	publisher   *publisherStub
}

func newFixture(t *testing.T, redisClient *redis.Client) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	return newFixtureWithStore(t, db, repository.NewStore(db), redisClient)
}

func newFixtureWithStore(t *testing.T, db *gorm.DB, store repository.Store, redisClient *redis.Client) *fixture {
	t.Helper()

	locks := NewLearnerLocks()
	cache := NewStandingCache(redisClient, 0, testLogger())
	aggregator := NewScoreAggregator(store, locks, cache, testLogger())
	publisher := &publisherStub{}

	return &fixture{
		db:          db,
		store:       store,
		locks:       locks,
		cache:       cache,
		aggregator:  aggregator,
		submissions: NewSubmissionService(store, locks, cache, validator.New(), DefaultMaxAttachments, testLogger()),
		reviews:     NewReviewService(store, aggregator, locks, cache, publisher, testLogger()),
		standings:   NewStandingService(store, cache, testLogger()),
		publisher:   publisher,
	}
}

func (f *fixture) submit(t *testing.T, learner models.Learner, activity models.Activity) uint {
	t.Helper()

	resp, err := f.submissions.Submit(context.Background(), SubmitInput{
		LearnerID:      learner.ID,
		ActivityID:     activity.ID,
		AttachmentRefs: []string{"ref-" + activity.Title},
		Notes:          "done",
	})
	require.NoError(t, err)
	return resp.ID
}

func (f *fixture) decide(submissionID uint, decisionID string, decision gamification.Decision) (DecisionResult, error) {
	return f.reviews.ApplyDecision(context.Background(), ApplyDecisionInput{
		SubmissionID: submissionID,
		Decision:     decision,
		DecisionID:   decisionID,
		Actor:        Actor{ID: 900, Role: "admin"},
	})
}

// requireInvariant asserts the stored total equals the sum of badge points and
// the stored level matches the total.
func (f *fixture) requireInvariant(t *testing.T, learnerID uint) models.Learner {
	t.Helper()

	var learner models.Learner
	require.NoError(t, f.db.First(&learner, learnerID).Error)

	var sum int64
	require.NoError(t, f.db.Model(&models.ScoreBadge{}).Where("learner_id = ?", learnerID).Select("COALESCE(SUM(points), 0)").Scan(&sum).Error)

	require.Equal(t, sum, learner.TotalScore)
	require.Equal(t, gamification.LevelForScore(sum), learner.Level)
	return learner
}

func (f *fixture) submission(t *testing.T, id uint) models.Submission {
	t.Helper()

	var submission models.Submission
	require.NoError(t, f.db.First(&submission, id).Error)
	return submission
}
