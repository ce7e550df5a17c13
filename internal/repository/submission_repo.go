package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-progress-api/internal/models"
)

// ErrVersionConflict indicates a versioned update matched no row because the
// submission changed since it was read.
var ErrVersionConflict = errors.New("submission version conflict")

// SubmissionFilter allows narrowing submission queries.
type SubmissionFilter struct {
	LearnerID  *uint
	ActivityID *uint
	Status     *models.SubmissionStatus
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetForUpdate(ctx context.Context, id uint) (models.Submission, error)
	GetByLearnerAndActivity(ctx context.Context, learnerID, activityID uint) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	UpdateVersioned(ctx context.Context, submission *models.Submission) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Activity").
		Preload("Learner")
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.baseQuery(ctx)

	if filter.LearnerID != nil {
		query = query.Where("learner_id = ?", *filter.LearnerID)
	}

	if filter.ActivityID != nil {
		query = query.Where("activity_id = ?", *filter.ActivityID)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var submissions []models.Submission
	if err := query.Order("updated_at DESC").Order("id DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

// GetForUpdate loads the submission and its activity, locking the row when the
// dialect supports it.
func (r *submissionRepository) GetForUpdate(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	if err := r.db.WithContext(ctx).First(&submission.Activity, submission.ActivityID).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByLearnerAndActivity(ctx context.Context, learnerID, activityID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("learner_id = ?", learnerID).
		Where("activity_id = ?", activityID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(submission).Error
}

// UpdateVersioned writes the mutable lifecycle fields only if the stored
// version still matches submission.Version, then bumps the version.
func (r *submissionRepository) UpdateVersioned(ctx context.Context, submission *models.Submission) error {
	result := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ? AND version = ?", submission.ID, submission.Version).
		Updates(map[string]interface{}{
			"status":          submission.Status,
			"submitted_at":    submission.SubmittedAt,
			"reviewed_at":     submission.ReviewedAt,
			"reviewed_by":     submission.ReviewedBy,
			"score":           submission.Score,
			"feedback":        submission.Feedback,
			"notes":           submission.Notes,
			"attachment_refs": submission.AttachmentRefs,
			"version":         submission.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}

	submission.Version++
	return nil
}
