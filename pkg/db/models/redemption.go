package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/monkelabs/monke-backend/pkg/enums"
)

// Redemption is a per-member discount claim issued when a group locks.
type Redemption struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupID    uuid.UUID              `gorm:"column:group_id;type:uuid;not null;index"`
	Wallet     string                 `gorm:"column:wallet;type:text;not null"`
	Code       string                 `gorm:"column:code;type:text;not null;uniqueIndex:ux_redemptions_code"`
	QRPayload  json.RawMessage        `gorm:"column:qr_payload;type:jsonb;not null"`
	Status     enums.RedemptionStatus `gorm:"column:status;type:redemption_status;not null;default:'issued'"`
	IssuedAt   time.Time              `gorm:"column:issued_at;type:timestamptz;not null;default:now()"`
	RedeemedAt *time.Time             `gorm:"column:redeemed_at;type:timestamptz"`
}
