package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/monkelabs/monke-backend/pkg/enums"
)

// Group is one instance of wallets pooling toward a deal's tiers.
// ParticipantsCount, TotalPledged, CurrentTierRank and CurrentDiscountPercent
// are derived fields recomputed from member rows; they are a read cache, never
// a second source of truth.
type Group struct {
	ID                     uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DealID                 uuid.UUID         `gorm:"column:deal_id;type:uuid;not null;index"`
	HostWallet             string            `gorm:"column:host_wallet;type:text;not null"`
	Status                 enums.GroupStatus `gorm:"column:status;type:group_status;not null;default:'forming'"`
	CurrentTierRank        int               `gorm:"column:current_tier_rank;not null;default:0"`
	CurrentDiscountPercent int               `gorm:"column:current_discount_percent;not null;default:0"`
	ParticipantsCount      int               `gorm:"column:participants_count;not null;default:0"`
	TotalPledged           decimal.Decimal   `gorm:"column:total_pledged;type:numeric(20,8);not null;default:0"`
	ExpiresAt              time.Time         `gorm:"column:expires_at;type:timestamptz;not null"`
	LockedAt               *time.Time        `gorm:"column:locked_at;type:timestamptz"`
	CancelledAt            *time.Time        `gorm:"column:cancelled_at;type:timestamptz"`
	ExpiredAt              *time.Time        `gorm:"column:expired_at;type:timestamptz"`
	CreatedAt              time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Members []GroupMember `gorm:"foreignKey:GroupID"`
}
