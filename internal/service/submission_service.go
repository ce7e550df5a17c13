package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/gamification"
	"github.com/noah-isme/gema-progress-api/internal/models"
	"github.com/noah-isme/gema-progress-api/internal/observability"
	"github.com/noah-isme/gema-progress-api/internal/repository"
)

// DefaultMaxAttachments is the attachment limit per submission.
const DefaultMaxAttachments = 5

// SubmitInput is a learner's submit request for one activity.
type SubmitInput struct {
	LearnerID      uint
	ActivityID     uint
	AttachmentRefs []string
	Notes          string
}

// SubmissionService orchestrates the learner side of the submission lifecycle.
type SubmissionService interface {
	Submit(ctx context.Context, input SubmitInput) (dto.SubmissionResponse, error)
	List(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error)
	Get(ctx context.Context, id uint) (dto.SubmissionResponse, error)
}

type submissionService struct {
	store          repository.Store
	locks          *LearnerLocks
	cache          *StandingCache
	validator      *validator.Validate
	sanitizer      *bluemonday.Policy
	maxAttachments int
	logger         zerolog.Logger
	tracer         trace.Tracer
	now            func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(store repository.Store, locks *LearnerLocks, cache *StandingCache, validate *validator.Validate, maxAttachments int, logger zerolog.Logger) SubmissionService {
	if locks == nil {
		locks = NewLearnerLocks()
	}
	if maxAttachments <= 0 {
		maxAttachments = DefaultMaxAttachments
	}
	return &submissionService{
		store:          store,
		locks:          locks,
		cache:          cache,
		validator:      validate,
		sanitizer:      bluemonday.StrictPolicy(),
		maxAttachments: maxAttachments,
		logger:         logger.With().Str("component", "submission_service").Logger(),
		tracer:         otel.Tracer("github.com/noah-isme/gema-progress-api/internal/service/submission"),
		now:            time.Now,
	}
}

func (s *submissionService) Submit(ctx context.Context, input SubmitInput) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("submission.learner_id", int64(input.LearnerID)),
		attribute.Int64("submission.activity_id", int64(input.ActivityID)),
	)

	refs := cleanRefs(input.AttachmentRefs)
	if len(refs) > s.maxAttachments {
		err := fmt.Errorf("%w: %d given, at most %d allowed", ErrTooManyAttachments, len(refs), s.maxAttachments)
		span.RecordError(err)
		span.SetStatus(codes.Error, "too_many_attachments")
		observability.Submissions().WithLabelValues("rejected").Inc()
		return dto.SubmissionResponse{}, err
	}
	notes := strings.TrimSpace(s.sanitizer.Sanitize(input.Notes))

	unlock := s.locks.Lock(input.LearnerID)
	defer unlock()

	var (
		stored     models.Submission
		transition gamification.Transition
	)
	err := s.store.WithinTransaction(context.WithoutCancel(ctx), func(ctx context.Context, tx repository.Store) error {
		activity, err := tx.Activities().GetByID(ctx, input.ActivityID)
		if err != nil {
			return storageError("load activity", err)
		}
		if _, err := tx.Learners().GetByID(ctx, input.LearnerID); err != nil {
			return storageError("load learner", err)
		}

		submission, err := tx.Submissions().GetByLearnerAndActivity(ctx, input.LearnerID, input.ActivityID)
		exists := true
		if errors.Is(err, gorm.ErrRecordNotFound) {
			exists = false
			submission = models.Submission{
				LearnerID:  input.LearnerID,
				ActivityID: input.ActivityID,
				Status:     models.SubmissionStatusNotStarted,
			}
		} else if err != nil {
			return storageError("load submission", err)
		}

		transition, err = gamification.Submit(&submission, activity, gamification.SubmitInput{
			AttachmentRefs: refs,
			Notes:          notes,
		}, s.now())
		if err != nil {
			return err
		}

		if exists {
			if err := tx.Submissions().UpdateVersioned(ctx, &submission); err != nil {
				return storageError("update submission", err)
			}
		} else {
			submission.Version = 1
			if err := tx.Submissions().Create(ctx, &submission); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("create submission: %w", gamification.ErrConcurrentModification)
				}
				return storageError("create submission", err)
			}
		}

		entry, err := newAuditLog(AuditEntry{
			Actor:      Actor{ID: input.LearnerID, Role: "member"},
			Action:     "submission.submitted",
			EntityType: "submission",
			EntityID:   &submission.ID,
			Metadata: map[string]interface{}{
				"activity_id":  input.ActivityID,
				"from_status":  string(transition.From),
				"attachments":  len(refs),
				"resubmission": transition.Refresh,
			},
		})
		if err != nil {
			return err
		}
		if err := tx.AuditLogs().Create(ctx, &entry); err != nil {
			return storageError("record audit log", err)
		}

		stored, err = tx.Submissions().GetByID(ctx, submission.ID)
		return storageError("reload submission", err)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit_failed")
		observability.Submissions().WithLabelValues("rejected").Inc()
		return dto.SubmissionResponse{}, storageError("submit", err)
	}

	s.cache.Invalidate(context.WithoutCancel(ctx), input.LearnerID)
	observability.Submissions().WithLabelValues("accepted").Inc()
	span.SetAttributes(
		attribute.String("submission.from", string(transition.From)),
		attribute.Bool("submission.refresh", transition.Refresh),
	)

	s.logger.Info().
		Uint("submission_id", stored.ID).
		Uint("learner_id", input.LearnerID).
		Str("from", string(transition.From)).
		Msg("submission accepted")

	return dto.NewSubmissionResponse(stored), nil
}

func (s *submissionService) List(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	repoFilter := repository.SubmissionFilter{
		LearnerID:  filter.LearnerID,
		ActivityID: filter.ActivityID,
	}
	if filter.Status != nil {
		status := models.SubmissionStatus(strings.ToUpper(strings.TrimSpace(*filter.Status)))
		repoFilter.Status = &status
	}

	submissions, err := s.store.Submissions().List(ctx, repoFilter)
	if err != nil {
		return nil, storageError("list submissions", err)
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) Get(ctx context.Context, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.store.Submissions().GetByID(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, storageError("load submission", err)
	}
	return dto.NewSubmissionResponse(submission), nil
}

// cleanRefs trims references and drops blanks and duplicates, keeping order.
func cleanRefs(refs []string) []string {
	seen := make(map[string]struct{}, len(refs))
	cleaned := make([]string, 0, len(refs))
	for _, ref := range refs {
		trimmed := strings.TrimSpace(ref)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		cleaned = append(cleaned, trimmed)
	}
	return cleaned
}
