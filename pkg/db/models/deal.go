package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/monkelabs/monke-backend/pkg/enums"
)

// Deal is a merchant-defined group-buy offer. Everything except Status is
// immutable once groups exist against the deal.
type Deal struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID      uuid.UUID        `gorm:"column:merchant_id;type:uuid;not null"`
	Title           string           `gorm:"column:title;type:text;not null"`
	BasePriceCents  int              `gorm:"column:base_price_cents;not null"`
	TierMode        enums.TierMode   `gorm:"column:tier_mode;type:tier_mode;not null"`
	MinParticipants int              `gorm:"column:min_participants;not null;default:2"`
	StartsAt        time.Time        `gorm:"column:starts_at;type:timestamptz;not null"`
	EndsAt          time.Time        `gorm:"column:ends_at;type:timestamptz;not null"`
	Status          enums.DealStatus `gorm:"column:status;type:deal_status;not null;default:'active'"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`

	Tiers []DealTier `gorm:"foreignKey:DealID"`
}
