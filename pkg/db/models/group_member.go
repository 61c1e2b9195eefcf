package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/monkelabs/monke-backend/pkg/enums"
)

// GroupMember is one wallet's participation in one group. A wallet may hold at
// most one non-withdrawn row per group (partial unique index in the schema).
type GroupMember struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupID     uuid.UUID          `gorm:"column:group_id;type:uuid;not null;index"`
	Wallet      string             `gorm:"column:wallet;type:text;not null"`
	PledgeUnits decimal.Decimal    `gorm:"column:pledge_units;type:numeric(20,8);not null;default:1"`
	Status      enums.MemberStatus `gorm:"column:status;type:member_status;not null;default:'pledged'"`
	JoinedAt    time.Time          `gorm:"column:joined_at;type:timestamptz;not null;default:now()"`
}
