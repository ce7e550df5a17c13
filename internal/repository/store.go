package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories that take part in a unit of work. Repositories
// returned by a Store obtained inside WithinTransaction share its transaction.
type Store interface {
	Learners() LearnerRepository
	Activities() ActivityRepository
	Submissions() SubmissionRepository
	Badges() BadgeRepository
	Decisions() DecisionRepository
	AuditLogs() AuditLogRepository
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore returns a Store backed by the given gorm connection.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Learners() LearnerRepository       { return NewLearnerRepository(s.db) }
func (s *gormStore) Activities() ActivityRepository    { return NewActivityRepository(s.db) }
func (s *gormStore) Submissions() SubmissionRepository { return NewSubmissionRepository(s.db) }
func (s *gormStore) Badges() BadgeRepository           { return NewBadgeRepository(s.db) }
func (s *gormStore) Decisions() DecisionRepository     { return NewDecisionRepository(s.db) }
func (s *gormStore) AuditLogs() AuditLogRepository     { return NewAuditLogRepository(s.db) }

// WithinTransaction runs fn inside a database transaction. The transaction is
// rolled back when fn returns an error or panics, and committed otherwise.
func (s *gormStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &gormStore{db: tx})
	})
}
