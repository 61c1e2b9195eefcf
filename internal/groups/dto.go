package group

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	deal "github.com/monkelabs/monke-backend/internal/deals"
	"github.com/monkelabs/monke-backend/pkg/db/models"
	"github.com/monkelabs/monke-backend/pkg/enums"
)

// GroupDTO is the API representation of a group.
type GroupDTO struct {
	ID                     uuid.UUID         `json:"id"`
	DealID                 uuid.UUID         `json:"deal_id"`
	HostWallet             string            `json:"host_wallet"`
	Status                 enums.GroupStatus `json:"status"`
	CurrentTierRank        int               `json:"current_tier_rank"`
	CurrentDiscountPercent int               `json:"current_discount_percent"`
	ParticipantsCount      int               `json:"participants_count"`
	TotalPledged           decimal.Decimal   `json:"total_pledged"`
	ExpiresAt              time.Time         `json:"expires_at"`
	LockedAt               *time.Time        `json:"locked_at,omitempty"`
	CancelledAt            *time.Time        `json:"cancelled_at,omitempty"`
	ExpiredAt              *time.Time        `json:"expired_at,omitempty"`
	CreatedAt              time.Time         `json:"created_at"`
}

// NewGroupDTO maps a group row to its DTO.
func NewGroupDTO(group *models.Group) *GroupDTO {
	if group == nil {
		return nil
	}
	return &GroupDTO{
		ID:                     group.ID,
		DealID:                 group.DealID,
		HostWallet:             group.HostWallet,
		Status:                 group.Status,
		CurrentTierRank:        group.CurrentTierRank,
		CurrentDiscountPercent: group.CurrentDiscountPercent,
		ParticipantsCount:      group.ParticipantsCount,
		TotalPledged:           group.TotalPledged,
		ExpiresAt:              group.ExpiresAt,
		LockedAt:               group.LockedAt,
		CancelledAt:            group.CancelledAt,
		ExpiredAt:              group.ExpiredAt,
		CreatedAt:              group.CreatedAt,
	}
}

// MemberDTO is the API representation of a group member.
type MemberDTO struct {
	ID          uuid.UUID          `json:"id"`
	Wallet      string             `json:"wallet"`
	PledgeUnits decimal.Decimal    `json:"pledge_units"`
	Status      enums.MemberStatus `json:"status"`
	JoinedAt    time.Time          `json:"joined_at"`
}

// NewMemberDTOs maps member rows in their stored order.
func NewMemberDTOs(members []models.GroupMember) []MemberDTO {
	out := make([]MemberDTO, 0, len(members))
	for _, member := range members {
		out = append(out, MemberDTO{
			ID:          member.ID,
			Wallet:      member.Wallet,
			PledgeUnits: member.PledgeUnits,
			Status:      member.Status,
			JoinedAt:    member.JoinedAt,
		})
	}
	return out
}

// GroupStatusDTO is the live status view: the group plus the tier the current
// progress resolves to and the distance to the next rung.
type GroupStatusDTO struct {
	Group            GroupDTO        `json:"group"`
	Tiers            []deal.TierDTO  `json:"tiers"`
	Members          []MemberDTO     `json:"members"`
	NextTierRank     *int            `json:"next_tier_rank,omitempty"`
	NextTierProgress decimal.Decimal `json:"next_tier_remaining"`
}

// SettlementDTO reports the outcome of a successful lock.
type SettlementDTO struct {
	GroupID              uuid.UUID       `json:"group_id"`
	FinalTierRank        int             `json:"final_tier_rank"`
	FinalDiscountPercent int             `json:"final_discount_percent"`
	ParticipantsCount    int             `json:"participants_count"`
	TotalPledged         decimal.Decimal `json:"total_pledged"`
	MomentumBonusApplied bool            `json:"momentum_bonus_applied"`
	LockedAt             time.Time       `json:"locked_at"`
	Redemptions          []RedemptionDTO `json:"redemptions"`
}

// RedemptionDTO is the API representation of a redemption.
type RedemptionDTO struct {
	ID         uuid.UUID              `json:"id"`
	GroupID    uuid.UUID              `json:"group_id"`
	Wallet     string                 `json:"wallet"`
	Code       string                 `json:"code"`
	QRPayload  json.RawMessage        `json:"qr_payload"`
	Status     enums.RedemptionStatus `json:"status"`
	IssuedAt   time.Time              `json:"issued_at"`
	RedeemedAt *time.Time             `json:"redeemed_at,omitempty"`
}

// NewRedemptionDTO maps a redemption row to its DTO.
func NewRedemptionDTO(redemption *models.Redemption) *RedemptionDTO {
	if redemption == nil {
		return nil
	}
	return &RedemptionDTO{
		ID:         redemption.ID,
		GroupID:    redemption.GroupID,
		Wallet:     redemption.Wallet,
		Code:       redemption.Code,
		QRPayload:  redemption.QRPayload,
		Status:     redemption.Status,
		IssuedAt:   redemption.IssuedAt,
		RedeemedAt: redemption.RedeemedAt,
	}
}

// GroupListResult is one page of groups plus the cursor for the next page.
type GroupListResult struct {
	Groups     []GroupDTO `json:"groups"`
	NextCursor string     `json:"next_cursor,omitempty"`
}
