package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-progress-api/internal/gamification"
	"github.com/noah-isme/gema-progress-api/internal/repository"
)

var (
	// ErrTooManyAttachments indicates a submission or upload carries more files than allowed.
	ErrTooManyAttachments = errors.New("too many attachments")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrNoFiles indicates an upload request without files.
	ErrNoFiles = errors.New("at least one file is required")
)

var passthroughErrors = []error{
	gamification.ErrNotFound,
	gamification.ErrWindowClosed,
	gamification.ErrInvalidScore,
	gamification.ErrIllegalTransition,
	gamification.ErrAlreadyApproved,
	gamification.ErrConcurrentModification,
	gamification.ErrDecisionMismatch,
	gamification.ErrStorageFailure,
	ErrTooManyAttachments,
	ErrUploadTooLarge,
	ErrUploadTypeNotAllowed,
	ErrNoFiles,
}

// storageError leaves domain errors untouched and classifies persistence
// errors: missing rows become ErrNotFound, lost version races become
// ErrConcurrentModification and everything else ErrStorageFailure.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return err
	}

	for _, target := range passthroughErrors {
		if errors.Is(err, target) {
			return err
		}
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, gamification.ErrNotFound)
	case errors.Is(err, repository.ErrVersionConflict):
		return fmt.Errorf("%s: %w", op, gamification.ErrConcurrentModification)
	default:
		return gamification.StorageFailure(op, err)
	}
}
