package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tindahan/marketplace-backend/pkg/enums"
)

// StatusChange is the audit row written for every accepted transition.
type StatusChange struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Field     enums.StatusField `gorm:"column:field;type:text;not null"`
	FromValue string            `gorm:"column:from_value;not null"`
	ToValue   string            `gorm:"column:to_value;not null"`
	ActorID   string            `gorm:"column:actor_id;not null"`
	ActorRole enums.ActorRole   `gorm:"column:actor_role;type:text;not null"`
	Forced    bool              `gorm:"column:forced;not null;default:false"`
	CreatedAt time.Time         `gorm:"column:created_at;not null"`
}

func (StatusChange) TableName() string {
	return "order_status_changes"
}
