package models

import "time"

// DecisionKind identifies a reviewer action.
type DecisionKind string

const (
	DecisionApprove DecisionKind = "APPROVE"
	DecisionReject  DecisionKind = "REJECT"
)

// DecisionRecord stores the outcome of an applied review decision, keyed by
// the caller supplied idempotency token.
type DecisionRecord struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	DecisionID   string           `gorm:"size:128;uniqueIndex;not null" json:"decision_id"`
	SubmissionID uint             `gorm:"not null;index" json:"submission_id"`
	LearnerID    uint             `gorm:"not null;index" json:"learner_id"`
	Kind         DecisionKind     `gorm:"size:16;not null" json:"kind"`
	Score        *int             `json:"score"`
	Feedback     string           `gorm:"type:text" json:"feedback"`
	ActorID      uint             `json:"actor_id"`
	ResultStatus SubmissionStatus `gorm:"size:32;not null" json:"result_status"`
	TotalScore   int64            `gorm:"not null" json:"total_score"`
	Level        LearnerLevel     `gorm:"size:32;not null" json:"level"`
	AppliedAt    time.Time        `gorm:"not null" json:"applied_at"`
}
