package deal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/monkelabs/monke-backend/pkg/db"
	"github.com/monkelabs/monke-backend/pkg/db/models"
	"github.com/monkelabs/monke-backend/pkg/enums"
	pkgerrors "github.com/monkelabs/monke-backend/pkg/errors"
	"github.com/monkelabs/monke-backend/pkg/pagination"
)

// Service exposes merchant and deal management operations.
type Service interface {
	CreateMerchant(ctx context.Context, input CreateMerchantInput) (*MerchantDTO, error)
	GetMerchant(ctx context.Context, id uuid.UUID) (*MerchantDTO, error)
	CreateDeal(ctx context.Context, input CreateDealInput) (*DealDTO, error)
	GetDeal(ctx context.Context, id uuid.UUID) (*DealDTO, error)
	ListActiveDeals(ctx context.Context, params pagination.Params) (*DealListResult, error)
	CloseDeal(ctx context.Context, id uuid.UUID) (*DealDTO, error)
}

// CreateMerchantInput holds the validated payload to register a merchant.
type CreateMerchantInput struct {
	Name   string
	Wallet string
}

// CreateDealInput holds the validated payload to publish a deal.
type CreateDealInput struct {
	MerchantID      uuid.UUID
	Title           string
	BasePriceCents  int
	TierMode        enums.TierMode
	MinParticipants *int
	StartsAt        time.Time
	EndsAt          time.Time
	Tiers           []TierInput
}

// TierInput defines one rung of the ladder at creation time.
type TierInput struct {
	Rank            int
	Threshold       decimal.Decimal
	DiscountPercent int
}

// DealListResult bundles a page of deals with the next cursor.
type DealListResult struct {
	Deals      []DealDTO `json:"deals"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

type dealStore interface {
	Create(ctx context.Context, deal *models.Deal) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Deal, error)
	ListActive(ctx context.Context, params pagination.Params) ([]models.Deal, *pagination.Cursor, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DealStatus) (bool, error)
}

type merchantStore interface {
	Create(ctx context.Context, merchant *models.Merchant) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error)
	FindByWallet(ctx context.Context, wallet string) (*models.Merchant, error)
}

type service struct {
	repo                   dealStore
	merchants              merchantStore
	defaultMinParticipants int
}

// NewService constructs a deal service instance.
func NewService(repo dealStore, merchants merchantStore, defaultMinParticipants int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("deal repository required")
	}
	if merchants == nil {
		return nil, fmt.Errorf("merchant repository required")
	}
	if defaultMinParticipants < 1 {
		defaultMinParticipants = 2
	}
	return &service{
		repo:                   repo,
		merchants:              merchants,
		defaultMinParticipants: defaultMinParticipants,
	}, nil
}

// CreateMerchant registers a merchant keyed by its wallet.
func (s *service) CreateMerchant(ctx context.Context, input CreateMerchantInput) (*MerchantDTO, error) {
	name := strings.TrimSpace(input.Name)
	wallet := strings.TrimSpace(input.Wallet)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant name is required")
	}
	if wallet == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant wallet is required")
	}

	merchant := &models.Merchant{
		ID:     uuid.New(),
		Name:   name,
		Wallet: wallet,
	}
	if err := s.merchants.Create(ctx, merchant); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "wallet already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create merchant")
	}
	return NewMerchantDTO(merchant), nil
}

// GetMerchant loads one merchant.
func (s *service) GetMerchant(ctx context.Context, id uuid.UUID) (*MerchantDTO, error) {
	merchant, err := s.merchants.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load merchant")
	}
	if merchant == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "merchant not found")
	}
	return NewMerchantDTO(merchant), nil
}

// CreateDeal publishes a deal together with its tier ladder.
func (s *service) CreateDeal(ctx context.Context, input CreateDealInput) (*DealDTO, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deal title is required")
	}
	if input.BasePriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "base_price_cents must be positive")
	}
	if !input.TierMode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid tier_mode")
	}
	if !input.EndsAt.After(input.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ends_at must be after starts_at")
	}
	if err := validateTierLadder(input.Tiers); err != nil {
		return nil, err
	}

	minParticipants := s.defaultMinParticipants
	if input.MinParticipants != nil {
		if *input.MinParticipants < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "min_participants must be at least 1")
		}
		minParticipants = *input.MinParticipants
	}

	merchant, err := s.merchants.FindByID(ctx, input.MerchantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load merchant")
	}
	if merchant == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "merchant not found")
	}

	deal := &models.Deal{
		ID:              uuid.New(),
		MerchantID:      merchant.ID,
		Title:           strings.TrimSpace(input.Title),
		BasePriceCents:  input.BasePriceCents,
		TierMode:        input.TierMode,
		MinParticipants: minParticipants,
		StartsAt:        input.StartsAt,
		EndsAt:          input.EndsAt,
		Status:          enums.DealStatusActive,
	}
	for _, tier := range input.Tiers {
		deal.Tiers = append(deal.Tiers, models.DealTier{
			ID:              uuid.New(),
			DealID:          deal.ID,
			Rank:            tier.Rank,
			Threshold:       tier.Threshold,
			DiscountPercent: tier.DiscountPercent,
		})
	}

	if err := s.repo.Create(ctx, deal); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create deal")
	}
	return NewDealDTO(deal), nil
}

// GetDeal loads one deal with its tiers.
func (s *service) GetDeal(ctx context.Context, id uuid.UUID) (*DealDTO, error) {
	deal, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load deal")
	}
	if deal == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDealNotFound, "deal not found")
	}
	return NewDealDTO(deal), nil
}

// ListActiveDeals returns a page of active deals.
func (s *service) ListActiveDeals(ctx context.Context, params pagination.Params) (*DealListResult, error) {
	deals, next, err := s.repo.ListActive(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list deals")
	}

	result := &DealListResult{Deals: make([]DealDTO, 0, len(deals))}
	for i := range deals {
		result.Deals = append(result.Deals, *NewDealDTO(&deals[i]))
	}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

// CloseDeal flips the deal to closed; existing groups keep running.
func (s *service) CloseDeal(ctx context.Context, id uuid.UUID) (*DealDTO, error) {
	updated, err := s.repo.UpdateStatus(ctx, id, enums.DealStatusClosed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to close deal")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeDealNotFound, "deal not found")
	}
	return s.GetDeal(ctx, id)
}

func validateTierLadder(tiers []TierInput) error {
	if len(tiers) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one tier is required")
	}
	previousRank := 0
	previousThreshold := decimal.Zero
	for i, tier := range tiers {
		if tier.Rank <= previousRank {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("tier %d: ranks must strictly increase starting at 1", i))
		}
		if !tier.Threshold.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("tier %d: threshold must be positive", i))
		}
		if i > 0 && !tier.Threshold.GreaterThan(previousThreshold) {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("tier %d: thresholds must strictly increase with rank", i))
		}
		if tier.DiscountPercent <= 0 || tier.DiscountPercent > 100 {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("tier %d: discount_percent must be between 1 and 100", i))
		}
		previousRank = tier.Rank
		previousThreshold = tier.Threshold
	}
	return nil
}
