package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-progress-api/internal/models"
)

// BadgeRepository persists per-activity score badges.
type BadgeRepository interface {
	Upsert(ctx context.Context, badge *models.ScoreBadge) error
	Delete(ctx context.Context, learnerID, activityID uint) error
	SumPoints(ctx context.Context, learnerID uint) (int64, error)
	ListByLearner(ctx context.Context, learnerID uint) ([]models.ScoreBadge, error)
}

type badgeRepository struct {
	db *gorm.DB
}

// NewBadgeRepository constructs a badge repository.
func NewBadgeRepository(db *gorm.DB) BadgeRepository {
	return &badgeRepository{db: db}
}

// Upsert creates the badge for (learner, activity) or overwrites its points.
func (r *badgeRepository) Upsert(ctx context.Context, badge *models.ScoreBadge) error {
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "learner_id"}, {Name: "activity_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"points", "earned_at", "updated_at"}),
		}).
		Create(badge).Error
}

func (r *badgeRepository) Delete(ctx context.Context, learnerID, activityID uint) error {
	return r.db.WithContext(ctx).
		Where("learner_id = ? AND activity_id = ?", learnerID, activityID).
		Delete(&models.ScoreBadge{}).Error
}

func (r *badgeRepository) SumPoints(ctx context.Context, learnerID uint) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.ScoreBadge{}).
		Where("learner_id = ?", learnerID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *badgeRepository) ListByLearner(ctx context.Context, learnerID uint) ([]models.ScoreBadge, error) {
	var badges []models.ScoreBadge
	if err := r.db.WithContext(ctx).
		Preload("Activity").
		Where("learner_id = ?", learnerID).
		Order("earned_at DESC").
		Order("id DESC").
		Find(&badges).Error; err != nil {
		return nil, err
	}
	return badges, nil
}
