package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-progress-api/internal/models"
)

// ActivityRepository reads the activity catalog. Catalog management owns the
// rows; Create exists for seeding and tests.
type ActivityRepository interface {
	GetByID(ctx context.Context, id uint) (models.Activity, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.Activity, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, activity *models.Activity) error
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository constructs the catalog repository.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) GetByID(ctx context.Context, id uint) (models.Activity, error) {
	var activity models.Activity
	if err := r.db.WithContext(ctx).First(&activity, id).Error; err != nil {
		return models.Activity{}, err
	}
	return activity, nil
}

func (r *activityRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.Activity, error) {
	if len(ids) == 0 {
		return []models.Activity{}, nil
	}

	var activities []models.Activity
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

func (r *activityRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Activity{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *activityRepository) Create(ctx context.Context, activity *models.Activity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}
