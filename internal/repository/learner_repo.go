package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-progress-api/internal/models"
)

// LearnerRepository persists learners and their derived standing.
type LearnerRepository interface {
	GetByID(ctx context.Context, id uint) (models.Learner, error)
	GetForUpdate(ctx context.Context, id uint) (models.Learner, error)
	Create(ctx context.Context, learner *models.Learner) error
	UpdateStanding(ctx context.Context, id uint, totalScore int64, level models.LearnerLevel) error
	ListIDs(ctx context.Context) ([]uint, error)
}

type learnerRepository struct {
	db *gorm.DB
}

// NewLearnerRepository constructs a learner repository.
func NewLearnerRepository(db *gorm.DB) LearnerRepository {
	return &learnerRepository{db: db}
}

func (r *learnerRepository) GetByID(ctx context.Context, id uint) (models.Learner, error) {
	var learner models.Learner
	if err := r.db.WithContext(ctx).First(&learner, id).Error; err != nil {
		return models.Learner{}, err
	}
	return learner, nil
}

// GetForUpdate loads the learner row with a row lock. Decisions for the same
// learner serialize on this lock across processes.
func (r *learnerRepository) GetForUpdate(ctx context.Context, id uint) (models.Learner, error) {
	var learner models.Learner
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&learner, id).Error; err != nil {
		return models.Learner{}, err
	}
	return learner, nil
}

func (r *learnerRepository) Create(ctx context.Context, learner *models.Learner) error {
	if learner.Level == "" {
		learner.Level = models.LevelBeginner
	}
	return r.db.WithContext(ctx).Create(learner).Error
}

func (r *learnerRepository) UpdateStanding(ctx context.Context, id uint, totalScore int64, level models.LearnerLevel) error {
	result := r.db.WithContext(ctx).
		Model(&models.Learner{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_score": totalScore,
			"level":       level,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *learnerRepository) ListIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Learner{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
