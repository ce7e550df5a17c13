package dto

import (
	"time"

	"github.com/noah-isme/gema-progress-api/internal/gamification"
	"github.com/noah-isme/gema-progress-api/internal/models"
)

// LearnerStandingResponse is the learner's aggregate progress.
type LearnerStandingResponse struct {
	LearnerID         uint                 `json:"learner_id"`
	Name              string               `json:"name"`
	TotalScore        int64                `json:"total_score"`
	Level             string               `json:"level"`
	NextLevel         string               `json:"next_level,omitempty"`
	PointsToNextLevel int64                `json:"points_to_next_level"`
	EarnedMilestones  []MilestoneResponse  `json:"earned_milestones"`
	ScoreBadges       []ScoreBadgeResponse `json:"score_badges"`
}

// MilestoneResponse describes a milestone badge.
type MilestoneResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Requirement string `json:"requirement"`
}

// ScoreBadgeResponse describes the badge earned for an approved activity.
type ScoreBadgeResponse struct {
	ActivityID    uint      `json:"activity_id"`
	ActivityTitle string    `json:"activity_title"`
	Points        int       `json:"points"`
	MaxScore      int       `json:"max_score"`
	Grade         string    `json:"grade"`
	EarnedAt      time.Time `json:"earned_at"`
}

// NewMilestoneResponse converts a catalog entry into a DTO.
func NewMilestoneResponse(milestone gamification.Milestone) MilestoneResponse {
	return MilestoneResponse{
		ID:          string(milestone.ID),
		Name:        milestone.Name,
		Description: milestone.Description,
		Requirement: milestone.Requirement,
	}
}

// NewMilestoneCatalogResponse converts the whole catalog.
func NewMilestoneCatalogResponse(catalog []gamification.Milestone) []MilestoneResponse {
	responses := make([]MilestoneResponse, 0, len(catalog))
	for _, milestone := range catalog {
		responses = append(responses, NewMilestoneResponse(milestone))
	}
	return responses
}

// NewScoreBadgeResponse converts a score badge model. The Activity
// association should be preloaded.
func NewScoreBadgeResponse(badge models.ScoreBadge) ScoreBadgeResponse {
	return ScoreBadgeResponse{
		ActivityID:    badge.ActivityID,
		ActivityTitle: badge.Activity.Title,
		Points:        badge.Points,
		MaxScore:      badge.Activity.MaxScore,
		Grade:         gamification.GradeFor(badge.Points, badge.Activity.MaxScore),
		EarnedAt:      badge.EarnedAt,
	}
}
