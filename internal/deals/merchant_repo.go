package deal

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/monkelabs/monke-backend/pkg/db/models"
)

// MerchantRepository provides merchant persistence.
type MerchantRepository struct {
	db *gorm.DB
}

// NewMerchantRepository builds a merchant repository.
func NewMerchantRepository(db *gorm.DB) *MerchantRepository {
	return &MerchantRepository{db: db}
}

// Create persists the merchant.
func (r *MerchantRepository) Create(ctx context.Context, merchant *models.Merchant) error {
	return r.db.WithContext(ctx).Create(merchant).Error
}

// FindByID loads the merchant by id, nil when not found.
func (r *MerchantRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error) {
	var merchant models.Merchant
	err := r.db.WithContext(ctx).First(&merchant, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &merchant, nil
}

// MerchantWalletForDeal resolves the wallet of the merchant owning a deal.
// Returns an empty string when the deal or merchant is missing.
func (r *MerchantRepository) MerchantWalletForDeal(ctx context.Context, dealID uuid.UUID) (string, error) {
	var wallet string
	err := r.db.WithContext(ctx).
		Model(&models.Merchant{}).
		Select("merchants.wallet").
		Joins("JOIN deals ON deals.merchant_id = merchants.id").
		Where("deals.id = ?", dealID).
		Scan(&wallet).Error
	if err != nil {
		return "", err
	}
	return wallet, nil
}

// FindByWallet loads the merchant registered for the wallet, nil when not found.
func (r *MerchantRepository) FindByWallet(ctx context.Context, wallet string) (*models.Merchant, error) {
	var merchant models.Merchant
	err := r.db.WithContext(ctx).First(&merchant, "wallet = ?", wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &merchant, nil
}
