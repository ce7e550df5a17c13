package gamification

import "github.com/noah-isme/gema-progress-api/internal/models"

// MilestoneID identifies a milestone badge.
type MilestoneID string

const (
	MilestoneFirstSubmission   MilestoneID = "first_submission"
	MilestoneFiveSubmissions   MilestoneID = "five_submissions"
	MilestoneTenSubmissions    MilestoneID = "ten_submissions"
	MilestoneTwentySubmissions MilestoneID = "twenty_submissions"
	MilestoneAllApproved       MilestoneID = "all_approved"
	MilestonePerfectScore      MilestoneID = "perfect_score"
	MilestoneHighScore         MilestoneID = "high_score"
)

// highScoreRequired is the number of approvals at or above 80% needed for high_score.
const highScoreRequired = 10

// Milestone describes a milestone badge for display.
type Milestone struct {
	ID          MilestoneID `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Requirement string      `json:"requirement"`
}

// SubmissionFact is the slice of a submission the milestone predicates look at.
type SubmissionFact struct {
	ActivityID uint
	Status     models.SubmissionStatus
	Submitted  bool
	Score      *int
	MaxScore   int
}

// FactFromSubmission extracts the milestone relevant fields. The submission's
// Activity association must be loaded for the score ratios to be meaningful.
func FactFromSubmission(sub models.Submission) SubmissionFact {
	return SubmissionFact{
		ActivityID: sub.ActivityID,
		Status:     sub.Status,
		Submitted:  sub.SubmittedAt != nil && sub.Status != models.SubmissionStatusNotStarted,
		Score:      sub.Score,
		MaxScore:   sub.Activity.MaxScore,
	}
}

type tally struct {
	submitted       int
	approved        int
	perfect         int
	high            int
	totalActivities int
}

type milestoneRule struct {
	Milestone
	earned func(t tally) bool
}

var milestoneRules = []milestoneRule{
	{
		Milestone: Milestone{ID: MilestoneFirstSubmission, Name: "Getting Started", Description: "Submitted a first activity", Requirement: "Submit at least 1 activity"},
		earned:    func(t tally) bool { return t.submitted >= 1 },
	},
	{
		Milestone: Milestone{ID: MilestoneFiveSubmissions, Name: "Committed", Description: "Submitted five activities", Requirement: "Submit at least 5 activities"},
		earned:    func(t tally) bool { return t.submitted >= 5 },
	},
	{
		Milestone: Milestone{ID: MilestoneTenSubmissions, Name: "Pathfinder", Description: "Submitted ten activities", Requirement: "Submit at least 10 activities"},
		earned:    func(t tally) bool { return t.submitted >= 10 },
	},
	{
		Milestone: Milestone{ID: MilestoneTwentySubmissions, Name: "True Learner", Description: "Submitted twenty activities", Requirement: "Submit at least 20 activities"},
		earned:    func(t tally) bool { return t.submitted >= 20 },
	},
	{
		Milestone: Milestone{ID: MilestoneAllApproved, Name: "Outstanding", Description: "Every activity approved", Requirement: "Have every activity in the catalog approved"},
		earned:    func(t tally) bool { return t.totalActivities > 0 && t.approved == t.totalActivities },
	},
	{
		Milestone: Milestone{ID: MilestonePerfectScore, Name: "Perfect", Description: "Earned full marks on an activity", Requirement: "Score the maximum on at least 1 activity"},
		earned:    func(t tally) bool { return t.perfect >= 1 },
	},
	{
		Milestone: Milestone{ID: MilestoneHighScore, Name: "High Achiever", Description: "Scored 80% or more repeatedly", Requirement: "Score at least 80% on 10 activities"},
		earned:    func(t tally) bool { return t.high >= highScoreRequired },
	},
}

// MilestoneCatalog lists every milestone badge in evaluation order.
func MilestoneCatalog() []Milestone {
	catalog := make([]Milestone, 0, len(milestoneRules))
	for _, rule := range milestoneRules {
		catalog = append(catalog, rule.Milestone)
	}
	return catalog
}

// EvaluateMilestones returns the milestones satisfied by a learner's
// submission history, in catalog order. It is pure: the same history and
// activity count always give the same result.
func EvaluateMilestones(history []SubmissionFact, totalActivities int) []MilestoneID {
	t := tally{totalActivities: totalActivities}
	for _, fact := range history {
		if fact.Submitted {
			t.submitted++
		}
		if fact.Status != models.SubmissionStatusApproved || fact.Score == nil {
			continue
		}
		t.approved++
		score := *fact.Score
		if fact.MaxScore > 0 && score == fact.MaxScore {
			t.perfect++
		}
		// score/max >= 0.8
		if fact.MaxScore > 0 && score*5 >= fact.MaxScore*4 {
			t.high++
		}
	}

	earned := make([]MilestoneID, 0, len(milestoneRules))
	for _, rule := range milestoneRules {
		if rule.earned(t) {
			earned = append(earned, rule.ID)
		}
	}
	return earned
}
