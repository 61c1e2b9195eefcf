package models

import (
	"time"

	"github.com/google/uuid"
)

// Settlement is the immutable record of a group's lock outcome. Exactly one
// row exists per locked group; the lock protocol's row-lock serialization
// enforces at-most-once creation and the unique index is a backstop.
type Settlement struct {
	ID                   uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupID              uuid.UUID `gorm:"column:group_id;type:uuid;not null;uniqueIndex:ux_settlements_group"`
	FinalTierRank        int       `gorm:"column:final_tier_rank;not null"`
	FinalDiscountPercent int       `gorm:"column:final_discount_percent;not null"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
}
