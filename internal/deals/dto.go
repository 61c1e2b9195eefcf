package deal

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/monkelabs/monke-backend/pkg/db/models"
)

// DealDTO is the deal payload returned to clients.
type DealDTO struct {
	ID              uuid.UUID `json:"id"`
	MerchantID      uuid.UUID `json:"merchant_id"`
	Title           string    `json:"title"`
	BasePriceCents  int       `json:"base_price_cents"`
	TierMode        string    `json:"tier_mode"`
	MinParticipants int       `json:"min_participants"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
	Status          string    `json:"status"`
	Tiers           []TierDTO `json:"tiers"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TierDTO is one rung of the discount ladder.
type TierDTO struct {
	ID              uuid.UUID       `json:"id"`
	Rank            int             `json:"rank"`
	Threshold       decimal.Decimal `json:"threshold"`
	DiscountPercent int             `json:"discount_percent"`
}

// MerchantDTO is the merchant payload returned to clients.
type MerchantDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Wallet    string    `json:"wallet"`
	CreatedAt time.Time `json:"created_at"`
}

// NewDealDTO builds a DTO from the persisted model.
func NewDealDTO(deal *models.Deal) *DealDTO {
	dto := &DealDTO{
		ID:              deal.ID,
		MerchantID:      deal.MerchantID,
		Title:           deal.Title,
		BasePriceCents:  deal.BasePriceCents,
		TierMode:        string(deal.TierMode),
		MinParticipants: deal.MinParticipants,
		StartsAt:        deal.StartsAt,
		EndsAt:          deal.EndsAt,
		Status:          string(deal.Status),
		Tiers:           NewTierDTOs(deal.Tiers),
		CreatedAt:       deal.CreatedAt,
		UpdatedAt:       deal.UpdatedAt,
	}
	return dto
}

// NewTierDTOs maps a tier ladder to its API representation.
func NewTierDTOs(tiers []models.DealTier) []TierDTO {
	out := make([]TierDTO, 0, len(tiers))
	for _, tier := range tiers {
		out = append(out, TierDTO{
			ID:              tier.ID,
			Rank:            tier.Rank,
			Threshold:       tier.Threshold,
			DiscountPercent: tier.DiscountPercent,
		})
	}
	return out
}

// NewMerchantDTO builds a DTO from the persisted model.
func NewMerchantDTO(merchant *models.Merchant) *MerchantDTO {
	return &MerchantDTO{
		ID:        merchant.ID,
		Name:      merchant.Name,
		Wallet:    merchant.Wallet,
		CreatedAt: merchant.CreatedAt,
	}
}
