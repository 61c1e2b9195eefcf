package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DealTier is one rung of a deal's discount ladder. Rank 0 is implicit
// (no discount); stored ranks start at 1 and thresholds strictly increase
// with rank within a deal.
type DealTier struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DealID          uuid.UUID       `gorm:"column:deal_id;type:uuid;not null;uniqueIndex:ux_deal_tiers_deal_rank,priority:1"`
	Rank            int             `gorm:"column:rank;not null;uniqueIndex:ux_deal_tiers_deal_rank,priority:2"`
	Threshold       decimal.Decimal `gorm:"column:threshold;type:numeric(20,8);not null"`
	DiscountPercent int             `gorm:"column:discount_percent;not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}
