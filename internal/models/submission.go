package models

import (
	"time"

	"gorm.io/datatypes"
)

// SubmissionStatus is the lifecycle state of a learner's submission.
type SubmissionStatus string

const (
	SubmissionStatusNotStarted SubmissionStatus = "NOT_STARTED"
	SubmissionStatusSubmitted  SubmissionStatus = "SUBMITTED"
	SubmissionStatusApproved   SubmissionStatus = "APPROVED"
	SubmissionStatusRejected   SubmissionStatus = "REJECTED"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionStatusNotStarted, SubmissionStatusSubmitted, SubmissionStatusApproved, SubmissionStatusRejected:
		return true
	default:
		return false
	}
}

// Submission is the single mutable record of one learner's attempt at one activity.
type Submission struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	LearnerID      uint                        `gorm:"not null;uniqueIndex:idx_submission_learner_activity" json:"learner_id"`
	ActivityID     uint                        `gorm:"not null;uniqueIndex:idx_submission_learner_activity;index" json:"activity_id"`
	Status         SubmissionStatus            `gorm:"size:32;not null;index" json:"status"`
	SubmittedAt    *time.Time                  `json:"submitted_at"`
	ReviewedAt     *time.Time                  `json:"reviewed_at"`
	ReviewedBy     *uint                       `json:"reviewed_by"`
	Score          *int                        `json:"score"`
	Feedback       string                      `gorm:"type:text" json:"feedback"`
	Notes          string                      `gorm:"type:text" json:"notes"`
	AttachmentRefs datatypes.JSONSlice[string] `gorm:"type:json" json:"attachment_refs"`
	Version        int                         `gorm:"not null;default:0" json:"version"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `gorm:"index" json:"updated_at"`
	Activity       Activity                    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"activity"`
	Learner        Learner                     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"learner"`
}

// IsApproved reports whether the submission carries a final approved score.
func (s Submission) IsApproved() bool {
	return s.Status == SubmissionStatusApproved
}
