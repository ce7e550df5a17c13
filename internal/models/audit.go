package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog captures submissions and review decisions for later inspection.
type AuditLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"not null" json:"actor_id"`
	ActorRole  string            `gorm:"size:32;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID   *uint             `json:"entity_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}

// All lists every model managed by the service, in migration order.
func All() []interface{} {
	return []interface{}{
		&Learner{},
		&Activity{},
		&Submission{},
		&ScoreBadge{},
		&DecisionRecord{},
		&AuditLog{},
	}
}
