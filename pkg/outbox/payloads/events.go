package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GroupCreatedEvent signals that a wallet opened a new group against a deal.
type GroupCreatedEvent struct {
	GroupID       uuid.UUID `json:"group_id"`
	DealID        uuid.UUID `json:"deal_id"`
	MerchantID    uuid.UUID `json:"merchant_id"`
	CreatorWallet string    `json:"creator_wallet"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// GroupJoinedEvent carries the recomputed progress snapshot after a join.
type GroupJoinedEvent struct {
	GroupID                uuid.UUID       `json:"group_id"`
	DealID                 uuid.UUID       `json:"deal_id"`
	Wallet                 string          `json:"wallet"`
	PledgeUnits            decimal.Decimal `json:"pledge_units"`
	ParticipantsCount      int             `json:"participants_count"`
	TotalPledged           decimal.Decimal `json:"total_pledged"`
	CurrentTierRank        *int            `json:"current_tier_rank,omitempty"`
	CurrentDiscountPercent decimal.Decimal `json:"current_discount_percent"`
}

// GroupLockedEvent is emitted exactly once when a group settles.
type GroupLockedEvent struct {
	GroupID              uuid.UUID       `json:"group_id"`
	DealID               uuid.UUID       `json:"deal_id"`
	FinalTierRank        *int            `json:"final_tier_rank,omitempty"`
	FinalDiscountPercent decimal.Decimal `json:"final_discount_percent"`
	ParticipantsCount    int             `json:"participants_count"`
	TotalPledged         decimal.Decimal `json:"total_pledged"`
	MomentumBonusApplied bool            `json:"momentum_bonus_applied"`
	LockedAt             time.Time       `json:"locked_at"`
}

// GroupCancelledEvent is emitted when a merchant or the sweep cancels a forming group.
type GroupCancelledEvent struct {
	GroupID     uuid.UUID `json:"group_id"`
	DealID      uuid.UUID `json:"deal_id"`
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// GroupExpiredEvent reports a group that ran out its deal window without locking.
type GroupExpiredEvent struct {
	GroupID           uuid.UUID `json:"group_id"`
	DealID            uuid.UUID `json:"deal_id"`
	ParticipantsCount int       `json:"participants_count"`
	ExpiredAt         time.Time `json:"expired_at"`
}

// CodeRedeemedEvent is emitted when a merchant marks a redemption code as used.
type CodeRedeemedEvent struct {
	RedemptionID uuid.UUID `json:"redemption_id"`
	GroupID      uuid.UUID `json:"group_id"`
	Wallet       string    `json:"wallet"`
	Code         string    `json:"code"`
	RedeemedAt   time.Time `json:"redeemed_at"`
}
