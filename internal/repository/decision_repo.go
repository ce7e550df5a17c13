package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-progress-api/internal/models"
)

// DecisionRepository stores applied review decisions by idempotency token.
type DecisionRepository interface {
	GetByDecisionID(ctx context.Context, decisionID string) (models.DecisionRecord, error)
	Create(ctx context.Context, record *models.DecisionRecord) error
}

type decisionRepository struct {
	db *gorm.DB
}

// NewDecisionRepository constructs the decision record repository.
func NewDecisionRepository(db *gorm.DB) DecisionRepository {
	return &decisionRepository{db: db}
}

func (r *decisionRepository) GetByDecisionID(ctx context.Context, decisionID string) (models.DecisionRecord, error) {
	var record models.DecisionRecord
	if err := r.db.WithContext(ctx).Where("decision_id = ?", decisionID).First(&record).Error; err != nil {
		return models.DecisionRecord{}, err
	}
	return record, nil
}

func (r *decisionRepository) Create(ctx context.Context, record *models.DecisionRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}
