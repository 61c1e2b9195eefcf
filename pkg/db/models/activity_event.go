package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/monkelabs/monke-backend/pkg/enums"
)

// ActivityEvent records an immutable group lifecycle event for the audit trail.
type ActivityEvent struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupID   uuid.UUID               `gorm:"column:group_id;type:uuid;not null;index"`
	Wallet    string                  `gorm:"column:wallet;type:text;not null"`
	Type      enums.ActivityEventType `gorm:"column:type;type:activity_event_type;not null"`
	Metadata  json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
}
