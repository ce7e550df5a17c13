package models

import "time"

// Activity is a gradable unit of work owned by catalog management.
type Activity struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	MaxScore    int       `gorm:"not null" json:"max_score"`
	GradeLevel  string    `gorm:"size:8" json:"grade_level"`
	StartDate   time.Time `gorm:"not null" json:"start_date"`
	EndDate     time.Time `gorm:"not null" json:"end_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsOpen reports whether submissions are accepted at the reference time.
func (a Activity) IsOpen(reference time.Time) bool {
	if !a.StartDate.IsZero() && reference.Before(a.StartDate) {
		return false
	}
	return !reference.After(a.EndDate)
}
