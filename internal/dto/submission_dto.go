package dto

import (
	"time"

	"github.com/noah-isme/gema-progress-api/internal/gamification"
	"github.com/noah-isme/gema-progress-api/internal/models"
)

// SubmitRequest is the learner payload for submitting an activity.
type SubmitRequest struct {
	AttachmentRefs []string `json:"attachment_refs" validate:"omitempty,dive,required,max=2048"`
	Notes          string   `json:"notes" validate:"max=5000"`
}

// SubmissionFilter describes query string filters for listing submissions.
type SubmissionFilter struct {
	LearnerID  *uint   `query:"learner_id"`
	ActivityID *uint   `query:"activity_id"`
	Status     *string `query:"status" validate:"omitempty,oneof=NOT_STARTED SUBMITTED APPROVED REJECTED"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID             uint         `json:"id"`
	LearnerID      uint         `json:"learner_id"`
	ActivityID     uint         `json:"activity_id"`
	Status         string       `json:"status"`
	SubmittedAt    *time.Time   `json:"submitted_at"`
	ReviewedAt     *time.Time   `json:"reviewed_at"`
	ReviewedBy     *uint        `json:"reviewed_by"`
	Score          *int         `json:"score"`
	Grade          string       `json:"grade,omitempty"`
	Feedback       string       `json:"feedback"`
	Notes          string       `json:"notes"`
	AttachmentRefs []string     `json:"attachment_refs"`
	Version        int          `json:"version"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	Activity       ActivityLite `json:"activity"`
	Learner        LearnerLite  `json:"learner"`
}

// ActivityLite summarizes an activity in submission responses.
type ActivityLite struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	MaxScore  int       `json:"max_score"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// LearnerLite summarizes a learner without exposing full profile data.
type LearnerLite struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	refs := []string(model.AttachmentRefs)
	if refs == nil {
		refs = []string{}
	}

	response := SubmissionResponse{
		ID:             model.ID,
		LearnerID:      model.LearnerID,
		ActivityID:     model.ActivityID,
		Status:         string(model.Status),
		SubmittedAt:    model.SubmittedAt,
		ReviewedAt:     model.ReviewedAt,
		ReviewedBy:     model.ReviewedBy,
		Score:          model.Score,
		Feedback:       model.Feedback,
		Notes:          model.Notes,
		AttachmentRefs: refs,
		Version:        model.Version,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}

	if model.Activity.ID != 0 {
		response.Activity = ActivityLite{
			ID:        model.Activity.ID,
			Title:     model.Activity.Title,
			MaxScore:  model.Activity.MaxScore,
			StartDate: model.Activity.StartDate,
			EndDate:   model.Activity.EndDate,
		}
		if model.IsApproved() && model.Score != nil {
			response.Grade = gamification.GradeFor(*model.Score, model.Activity.MaxScore)
		}
	}

	if model.Learner.ID != 0 {
		response.Learner = LearnerLite{
			ID:    model.Learner.ID,
			Name:  model.Learner.Name,
			Email: model.Learner.Email,
		}
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(models []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(models))
	for _, submission := range models {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}
