package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-progress-api/internal/gamification"
	"github.com/noah-isme/gema-progress-api/internal/models"
	"github.com/noah-isme/gema-progress-api/internal/repository"
	"github.com/noah-isme/gema-progress-api/internal/testutil"
)

func TestApplyDecisionFiveActivityScenario(t *testing.T) {
	f := newFixture(t, nil)
	learner := testutil.CreateLearner(t, f.db, "Ana")

	scores := []int{100, 80, 70, 50, 90}
	for i, score := range scores {
		activity := testutil.CreateOpenActivity(t, f.db, string(rune('A'+i)), 100)
		submissionID := f.submit(t, learner, activity)

		_, err := f.decide(submissionID, "", gamification.Approve(score, "ok"))
		require.NoError(t, err)
		f.requireInvariant(t, learner.ID)
	}

	stored := f.requireInvariant(t, learner.ID)
	require.Equal(t, int64(390), stored.TotalScore)
	require.Equal(t, models.LevelBeginner, stored.Level)

	standing, err := f.standings.GetLearnerStanding(context.Background(), learner.ID)
	require.NoError(t, err)
	require.Equal(t, int64(390), standing.TotalScore)
	require.Equal(t, string(models.LevelIntermediate), standing.NextLevel)
	require.Equal(t, int64(110), standing.PointsToNextLevel)
	require.Len(t, standing.ScoreBadges, 5)

	ids := make([]string, 0, len(standing.EarnedMilestones))
	for _, milestone := range standing.EarnedMilestones {
		ids = append(ids, milestone.ID)
	}
	require.Contains(t, ids, string(gamification.MilestonePerfectScore))
	require.Contains(t, ids, string(gamification.MilestoneFirstSubmission))
	require.Contains(t, ids, string(gamification.MilestoneFiveSubmissions))
	require.NotContains(t, ids, string(gamification.MilestoneHighScore))
}

func TestApplyDecisionIsIdempotentPerDecisionID(t *testing.T) {
	f := newFixture(t, nil)
	learner := testutil.CreateLearner(t, f.db, "Budi")
	activity := testutil.CreateOpenActivity(t, f.db, "Loops", 100)
	submissionID := f.submit(t, learner, activity)

	first, err := f.decide(submissionID, "decision-1", gamification.Approve(75, "nice"))
	require.NoError(t, err)
	require.False(t, first.Replayed)

	second, err := f.decide(submissionID, "decision-1", gamification.Approve(75, "nice"))
	require.NoError(t, err)
	require.True(t, second.Replayed)
	require.Equal(t, first.TotalScore, second.TotalScore)
	require.Equal(t, first.Status, second.Status)

	var records int64
	require.NoError(t, f.db.Model(&models.DecisionRecord{}).Count(&records).Error)
	require.Equal(t, int64(1), records)

	stored := f.requireInvariant(t, learner.ID)
	require.Equal(t, int64(75), stored.TotalScore)
	require.Len(t, f.publisher.published(), 1)
}

func TestApplyDecisionRejectsReusedTokenWithDifferentPayload(t *testing.T) {
	f := newFixture(t, nil)
	learner := testutil.CreateLearner(t, f.db, "Citra")
	activity := testutil.CreateOpenActivity(t, f.db, "Arrays", 100)
	submissionID := f.submit(t, learner, activity)

	_, err := f.decide(submissionID, "decision-1", gamification.Approve(60, ""))
	require.NoError(t, err)

	_, err = f.decide(submissionID, "decision-1", gamification.Approve(90, ""))
	require.ErrorIs(t, err, gamification.ErrDecisionMismatch)

	stored := f.requireInvariant(t, learner.ID)
	require.Equal(t, int64(60), stored.TotalScore)
}

func TestApplyDecisionRegradeOverwritesBadge(t *testing.T) {
	f := newFixture(t, nil)
	learner := testutil.CreateLearner(t, f.db, "Dewi")
	activity := testutil.CreateOpenActivity(t, f.db, "Maps", 100)
	submissionID := f.submit(t, learner, activity)

	_, err := f.decide(submissionID, "", gamification.Approve(60, ""))
	require.NoError(t, err)

	result, err := f.decide(submissionID, "", gamification.Approve(90, "regraded"))
	require.NoError(t, err)
	require.Equal(t, int64(90), result.TotalScore)
	require.Equal(t, models.SubmissionStatusApproved, result.Status)

	var badges int64
	require.NoError(t, f.db.Model(&models.ScoreBadge{}).Where("learner_id = ?", learner.ID).Count(&badges).Error)
	require.Equal(t, int64(1), badges)
	f.requireInvariant(t, learner.ID)
}

func TestApplyDecisionRejectAfterApprovalRemovesBadge(t *testing.T) {
	f := newFixture(t, nil)
	learner := testutil.CreateLearner(t, f.db, "Eka")
	activity := testutil.CreateOpenActivity(t, f.db, "Structs", 100)
	submissionID := f.submit(t, learner, activity)

	_, err := f.decide(submissionID, "", gamification.Approve(70, ""))
	require.NoError(t, err)

	result, err := f.decide(submissionID, "", gamification.Reject("plagiarised"))
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusRejected, result.Status)
	require.Zero(t, result.TotalScore)

	submission := f.submission(t, submissionID)
	require.Nil(t, submission.Score)
	require.Equal(t, "plagiarised", submission.Feedback)
	f.requireInvariant(t, learner.ID)
}

func TestRejectWithoutApprovalThenResubmit(t *testing.T) {
	f := newFixture(t, nil)
	learner := testutil.CreateLearner(t, f.db, "Fajar")
	activity := testutil.CreateOpenActivity(t, f.db, "Closures", 100)
	submissionID := f.submit(t, learner, activity)

	result, err := f.decide(submissionID, "", gamification.Reject("missing tests"))
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusRejected, result.Status)
	require.Zero(t, result.TotalScore)

	resubmitted, err := f.submissions.Submit(context.Background(), SubmitInput{LearnerID: learner.ID, ActivityID: activity.ID, AttachmentRefs: []string{"ref-2"}})
	require.NoError(t, err)
	require.Equal(t, submissionID, resubmitted.ID)
	require.Equal(t, string(models.SubmissionStatusSubmitted), resubmitted.Status)
	require.Equal(t, "missing tests", resubmitted.Feedback)
	require.Equal(t, []string{"ref-2"}, resubmitted.AttachmentRefs)
	f.requireInvariant(t, learner.ID)
}

func TestApplyDecisionGuards(t *testing.T) {
	f := newFixture(t, nil)
	learner := testutil.CreateLearner(t, f.db, "Gita")
	activity := testutil.CreateOpenActivity(t, f.db, "Generics", 50)

	notStarted := models.Submission{LearnerID: learner.ID, ActivityID: activity.ID, Status: models.SubmissionStatusNotStarted, Version: 1}
	require.NoError(t, f.db.Create(&notStarted).Error)

	_, err := f.decide(notStarted.ID, "", gamification.Approve(10, ""))
	require.ErrorIs(t, err, gamification.ErrIllegalTransition)

	_, err = f.decide(notStarted.ID, "", gamification.Reject(""))
	require.ErrorIs(t, err, gamification.ErrIllegalTransition)

	other := testutil.CreateOpenActivity(t, f.db, "Channels", 50)
	submissionID := f.submit(t, learner, other)

	_, err = f.decide(submissionID, "", gamification.Approve(51, ""))
	require.ErrorIs(t, err, gamification.ErrInvalidScore)
	require.Equal(t, models.SubmissionStatusSubmitted, f.submission(t, submissionID).Status)

	_, err = f.decide(submissionID, "", gamification.Approve(-1, ""))
	require.ErrorIs(t, err, gamification.ErrInvalidScore)
	require.Equal(t, models.SubmissionStatusSubmitted, f.submission(t, submissionID).Status)

	_, err = f.decide(submissionID, "", gamification.Decision{Kind: models.DecisionApprove})
	require.ErrorIs(t, err, gamification.ErrInvalidScore)

	_, err = f.decide(submissionID, "", gamification.Reject(""))
	require.NoError(t, err)

	_, err = f.decide(submissionID, "", gamification.Approve(40, ""))
	require.ErrorIs(t, err, gamification.ErrIllegalTransition)

	_, err = f.decide(9999, "", gamification.Approve(1, ""))
	require.ErrorIs(t, err, gamification.ErrNotFound)

	stored := f.requireInvariant(t, learner.ID)
	require.Zero(t, stored.TotalScore)
}

func TestApplyDecisionExpectedStatusMismatch(t *testing.T) {
	f := newFixture(t, nil)
	learner := testutil.CreateLearner(t, f.db, "Hana")
	activity := testutil.CreateOpenActivity(t, f.db, "Errors", 100)
	submissionID := f.submit(t, learner, activity)

	_, err := f.decide(submissionID, "", gamification.Approve(50, ""))
	require.NoError(t, err)

	expected := models.SubmissionStatusSubmitted
	_, err = f.reviews.ApplyDecision(context.Background(), ApplyDecisionInput{
		SubmissionID:   submissionID,
		Decision:       gamification.Reject("late"),
		ExpectedStatus: &expected,
		Actor:          Actor{ID: 1, Role: "admin"},
	})
	require.ErrorIs(t, err, gamification.ErrConcurrentModification)

	stored := f.requireInvariant(t, learner.ID)
	require.Equal(t, int64(50), stored.TotalScore)
}

func TestApplyDecisionConcurrentConflictingDecisions(t *testing.T) {
	f := newFixture(t, nil)
	learner := testutil.CreateLearner(t, f.db, "Indra")
	activity := testutil.CreateOpenActivity(t, f.db, "Mutexes", 100)
	submissionID := f.submit(t, learner, activity)

	expected := models.SubmissionStatusSubmitted
	decisions := []gamification.Decision{
		gamification.Approve(80, "approve"),
		gamification.Reject("reject"),
	}

	var wg sync.WaitGroup
	errs := make([]error, len(decisions))
	for i, decision := range decisions {
		wg.Add(1)
		go func(i int, decision gamification.Decision) {
			defer wg.Done()
			_, errs[i] = f.reviews.ApplyDecision(context.Background(), ApplyDecisionInput{
				SubmissionID:   submissionID,
				Decision:       decision,
				ExpectedStatus: &expected,
				Actor:          Actor{ID: uint(i + 1), Role: "admin"},
			})
		}(i, decision)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, gamification.ErrConcurrentModification):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, conflicted)

	stored := f.requireInvariant(t, learner.ID)
	submission := f.submission(t, submissionID)
	if submission.Status == models.SubmissionStatusApproved {
		require.Equal(t, int64(80), stored.TotalScore)
	} else {
		require.Equal(t, models.SubmissionStatusRejected, submission.Status)
		require.Zero(t, stored.TotalScore)
	}
}

func TestApplyDecisionConcurrentSameTokenAppliesOnce(t *testing.T) {
	f := newFixture(t, nil)
	learner := testutil.CreateLearner(t, f.db, "Joko")
	activity := testutil.CreateOpenActivity(t, f.db, "Select", 100)
	submissionID := f.submit(t, learner, activity)

	const attempts = 4
	var wg sync.WaitGroup
	results := make([]DecisionResult, attempts)
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.decide(submissionID, "same-token", gamification.Approve(65, ""))
		}(i)
	}
	wg.Wait()

	applied := 0
	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, int64(65), results[i].TotalScore)
		if !results[i].Replayed {
			applied++
		}
	}
	require.Equal(t, 1, applied)
	f.requireInvariant(t, learner.ID)
}

type failingDecisionStore struct {
	repository.Store
}

func (s failingDecisionStore) Decisions() repository.DecisionRepository {
	return failingDecisions{}
}

func (s failingDecisionStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return s.Store.WithinTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		return fn(ctx, failingDecisionStore{Store: tx})
	})
}

type failingDecisions struct{}

func (failingDecisions) GetByDecisionID(ctx context.Context, decisionID string) (models.DecisionRecord, error) {
	return models.DecisionRecord{}, gorm.ErrRecordNotFound
}

func (failingDecisions) Create(ctx context.Context, record *models.DecisionRecord) error {
	return errors.New("disk full")
}

func TestApplyDecisionRollsBackOnStorageFailure(t *testing.T) {
	db := testutil.NewDB(t)
	healthy := newFixtureWithStore(t, db, repository.NewStore(db), nil)
	failing := newFixtureWithStore(t, db, failingDecisionStore{Store: repository.NewStore(db)}, nil)

	learner := testutil.CreateLearner(t, db, "Kiki")
	activity := testutil.CreateOpenActivity(t, db, "Tx", 100)
	submissionID := healthy.submit(t, learner, activity)

	_, err := failing.decide(submissionID, "", gamification.Approve(88, ""))
	require.ErrorIs(t, err, gamification.ErrStorageFailure)

	submission := healthy.submission(t, submissionID)
	require.Equal(t, models.SubmissionStatusSubmitted, submission.Status)
	require.Nil(t, submission.Score)
	require.Equal(t, 1, submission.Version)

	var badges int64
	require.NoError(t, db.Model(&models.ScoreBadge{}).Count(&badges).Error)
	require.Zero(t, badges)

	stored := healthy.requireInvariant(t, learner.ID)
	require.Zero(t, stored.TotalScore)
	require.Empty(t, failing.publisher.published())

	_, err = healthy.decide(submissionID, "", gamification.Approve(88, ""))
	require.NoError(t, err)
	require.Equal(t, int64(88), healthy.requireInvariant(t, learner.ID).TotalScore)
}

func TestApplyDecisionInvariantAcrossSequence(t *testing.T) {
	f := newFixture(t, nil)
	learner := testutil.CreateLearner(t, f.db, "Lina")

	activities := make([]models.Activity, 3)
	submissionIDs := make([]uint, 3)
	for i := range activities {
		activities[i] = testutil.CreateOpenActivity(t, f.db, string(rune('X'+i)), 600)
		submissionIDs[i] = f.submit(t, learner, activities[i])
	}

	steps := []struct {
		index    int
		decision gamification.Decision
		resubmit bool
	}{
		{index: 0, decision: gamification.Approve(500, "")},
		{index: 1, decision: gamification.Approve(600, "")},
		{index: 0, decision: gamification.Approve(300, "")},
		{index: 1, decision: gamification.Reject("")},
		{index: 1, resubmit: true},
		{index: 1, decision: gamification.Approve(450, "")},
		{index: 2, decision: gamification.Approve(600, "")},
	}

	for _, step := range steps {
		if step.resubmit {
			f.submit(t, learner, activities[step.index])
		} else {
			_, err := f.decide(submissionIDs[step.index], "", step.decision)
			require.NoError(t, err)
		}
		f.requireInvariant(t, learner.ID)
	}

	stored := f.requireInvariant(t, learner.ID)
	require.Equal(t, int64(1350), stored.TotalScore)
	require.Equal(t, models.LevelIntermediate, stored.Level)
}

func TestApplyDecisionPublishFailureDoesNotFailDecision(t *testing.T) {
	f := newFixture(t, nil)
	f.publisher.err = errors.New("nats down")
	learner := testutil.CreateLearner(t, f.db, "Mira")
	activity := testutil.CreateOpenActivity(t, f.db, "Events", 100)
	submissionID := f.submit(t, learner, activity)

	result, err := f.decide(submissionID, "", gamification.Approve(40, ""))
	require.NoError(t, err)
	require.Equal(t, int64(40), result.TotalScore)
}

func TestApplyDecisionPublishesEvent(t *testing.T) {
	f := newFixture(t, nil)
	learner := testutil.CreateLearner(t, f.db, "Nina")
	activity := testutil.CreateOpenActivity(t, f.db, "Streams", 100)
	submissionID := f.submit(t, learner, activity)

	_, err := f.decide(submissionID, "evt-1", gamification.Approve(95, ""))
	require.NoError(t, err)

	events := f.publisher.published()
	require.Len(t, events, 1)
	require.Equal(t, "evt-1", events[0].DecisionID)
	require.Equal(t, learner.ID, events[0].LearnerID)
	require.Equal(t, activity.ID, events[0].ActivityID)
	require.Equal(t, string(models.SubmissionStatusApproved), events[0].Status)
	require.Equal(t, int64(95), events[0].TotalScore)
	require.NotEmpty(t, events[0].EventID)
}

func TestMilestonesUnaffectedByOtherLearners(t *testing.T) {
	f := newFixture(t, nil)
	first := testutil.CreateLearner(t, f.db, "Oka")
	second := testutil.CreateLearner(t, f.db, "Putri")
	activity := testutil.CreateOpenActivity(t, f.db, "Shared", 100)

	firstSubmission := f.submit(t, first, activity)
	_, err := f.decide(firstSubmission, "", gamification.Approve(100, ""))
	require.NoError(t, err)

	before, err := f.standings.GetLearnerStanding(context.Background(), first.ID)
	require.NoError(t, err)

	secondSubmission := f.submit(t, second, activity)
	_, err = f.decide(secondSubmission, "", gamification.Approve(20, ""))
	require.NoError(t, err)
	_, err = f.decide(secondSubmission, "", gamification.Reject(""))
	require.NoError(t, err)

	after, err := f.standings.GetLearnerStanding(context.Background(), first.ID)
	require.NoError(t, err)
	require.Equal(t, before.EarnedMilestones, after.EarnedMilestones)
	require.Equal(t, before.TotalScore, after.TotalScore)
}
