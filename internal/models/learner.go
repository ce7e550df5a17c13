package models

import "time"

// LearnerLevel is the achievement tier derived from a learner's total score.
type LearnerLevel string

const (
	LevelBeginner     LearnerLevel = "BEGINNER"
	LevelIntermediate LearnerLevel = "INTERMEDIATE"
	LevelAdvanced     LearnerLevel = "ADVANCED"
	LevelExpert       LearnerLevel = "EXPERT"
)

// Learner is a non-administrative account progressing through activities.
// TotalScore and Level are derived values owned by the score aggregator.
type Learner struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"size:255;not null" json:"name"`
	Email        string       `gorm:"size:255;uniqueIndex;not null" json:"email"`
	ProfileImage string       `gorm:"size:512" json:"profile_image"`
	TotalScore   int64        `gorm:"not null;default:0" json:"total_score"`
	Level        LearnerLevel `gorm:"size:32;not null;default:BEGINNER" json:"level"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
