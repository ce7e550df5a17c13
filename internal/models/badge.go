package models

import "time"

// ScoreBadge is the per-activity badge created when a submission is approved.
// The sum of Points over a learner's badges is the learner's total score.
type ScoreBadge struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	LearnerID  uint      `gorm:"not null;uniqueIndex:idx_badge_learner_activity" json:"learner_id"`
	ActivityID uint      `gorm:"not null;uniqueIndex:idx_badge_learner_activity" json:"activity_id"`
	Points     int       `gorm:"not null" json:"points"`
	EarnedAt   time.Time `gorm:"not null" json:"earned_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Activity   Activity  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"activity"`
}
