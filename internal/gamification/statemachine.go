package gamification

import (
	"fmt"
	"time"

	"github.com/noah-isme/gema-progress-api/internal/models"
)

// BadgeEffect tells the coordinator what a transition requires of the
// per-activity score badge.
type BadgeEffect int

const (
	BadgeUnchanged BadgeEffect = iota
	BadgeUpsert
	BadgeRemove
)

func (e BadgeEffect) String() string {
	switch e {
	case BadgeUpsert:
		return "upsert"
	case BadgeRemove:
		return "remove"
	default:
		return "unchanged"
	}
}

// Transition describes a status change applied to a submission.
type Transition struct {
	From  models.SubmissionStatus
	To    models.SubmissionStatus
	Badge BadgeEffect
	// Refresh is set when an already SUBMITTED submission was submitted again.
	Refresh bool
}

// SubmitInput carries the learner supplied part of a submission.
type SubmitInput struct {
	AttachmentRefs []string
	Notes          string
}

// Decision is a reviewer's approve or reject action.
type Decision struct {
	Kind     models.DecisionKind
	Score    *int
	Feedback string
}

// Approve builds an approval decision.
func Approve(score int, feedback string) Decision {
	return Decision{Kind: models.DecisionApprove, Score: &score, Feedback: feedback}
}

// Reject builds a rejection decision.
func Reject(feedback string) Decision {
	return Decision{Kind: models.DecisionReject, Feedback: feedback}
}

// CurrentStatus returns the submission status, treating an empty value as NOT_STARTED.
func CurrentStatus(sub *models.Submission) models.SubmissionStatus {
	if sub == nil || sub.Status == "" {
		return models.SubmissionStatusNotStarted
	}
	return sub.Status
}

// Submit moves a submission into SUBMITTED. sub may be a zero value standing in
// for a NOT_STARTED submission that has no stored row yet.
func Submit(sub *models.Submission, activity models.Activity, input SubmitInput, now time.Time) (Transition, error) {
	from := CurrentStatus(sub)

	switch from {
	case models.SubmissionStatusApproved:
		return Transition{}, ErrAlreadyApproved
	case models.SubmissionStatusNotStarted, models.SubmissionStatusRejected, models.SubmissionStatusSubmitted:
	default:
		return Transition{}, illegalTransition("submit", from)
	}

	if !activity.IsOpen(now) {
		return Transition{}, ErrWindowClosed
	}

	submittedAt := now
	sub.Status = models.SubmissionStatusSubmitted
	sub.SubmittedAt = &submittedAt
	sub.AttachmentRefs = append([]string(nil), input.AttachmentRefs...)
	sub.Notes = input.Notes
	sub.Score = nil
	sub.ReviewedAt = nil
	sub.ReviewedBy = nil

	return Transition{
		From:    from,
		To:      models.SubmissionStatusSubmitted,
		Badge:   BadgeUnchanged,
		Refresh: from == models.SubmissionStatusSubmitted,
	}, nil
}

// Review applies a reviewer decision. Approving an APPROVED submission is a
// regrade; rejecting it withdraws the score badge.
func Review(sub *models.Submission, activity models.Activity, decision Decision, reviewerID uint, now time.Time) (Transition, error) {
	from := CurrentStatus(sub)

	switch from {
	case models.SubmissionStatusSubmitted, models.SubmissionStatusApproved:
	case models.SubmissionStatusNotStarted, models.SubmissionStatusRejected:
		return Transition{}, illegalTransition(string(decision.Kind), from)
	default:
		return Transition{}, illegalTransition(string(decision.Kind), from)
	}

	reviewedAt := now
	reviewer := reviewerID

	switch decision.Kind {
	case models.DecisionApprove:
		if err := ValidateScore(decision.Score, activity.MaxScore); err != nil {
			return Transition{}, err
		}
		score := *decision.Score
		sub.Status = models.SubmissionStatusApproved
		sub.Score = &score
		sub.Feedback = decision.Feedback
		sub.ReviewedAt = &reviewedAt
		sub.ReviewedBy = &reviewer
		return Transition{From: from, To: models.SubmissionStatusApproved, Badge: BadgeUpsert}, nil
	case models.DecisionReject:
		sub.Status = models.SubmissionStatusRejected
		sub.Score = nil
		sub.Feedback = decision.Feedback
		sub.ReviewedAt = &reviewedAt
		sub.ReviewedBy = &reviewer
		return Transition{From: from, To: models.SubmissionStatusRejected, Badge: BadgeRemove}, nil
	default:
		return Transition{}, fmt.Errorf("%w: unknown decision %q", ErrIllegalTransition, decision.Kind)
	}
}

// ValidateScore checks an approval score against the activity ceiling.
func ValidateScore(score *int, maxScore int) error {
	if score == nil {
		return fmt.Errorf("%w: score is required", ErrInvalidScore)
	}
	if *score < 0 || *score > maxScore {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidScore, *score, maxScore)
	}
	return nil
}

func illegalTransition(event string, from models.SubmissionStatus) error {
	return fmt.Errorf("%w: %s from %s", ErrIllegalTransition, event, from)
}
