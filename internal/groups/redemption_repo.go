package group

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/monkelabs/monke-backend/pkg/db/models"
	"github.com/monkelabs/monke-backend/pkg/enums"
)

// RedemptionRepository provides redemption persistence. Issuance is
// append-only; the only mutation is the issued→redeemed flip.
type RedemptionRepository struct {
	db *gorm.DB
}

// NewRedemptionRepository builds a redemption repository.
func NewRedemptionRepository(db *gorm.DB) *RedemptionRepository {
	return &RedemptionRepository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *RedemptionRepository) WithTx(tx *gorm.DB) *RedemptionRepository {
	if tx == nil {
		return r
	}
	return &RedemptionRepository{db: tx}
}

// InsertBatch persists the full redemption fan-out of one settlement.
func (r *RedemptionRepository) InsertBatch(ctx context.Context, redemptions []models.Redemption) error {
	if len(redemptions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&redemptions).Error
}

// FindByCode loads one redemption by its code, nil when unknown.
func (r *RedemptionRepository) FindByCode(ctx context.Context, code string) (*models.Redemption, error) {
	var redemption models.Redemption
	err := r.db.WithContext(ctx).First(&redemption, "code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &redemption, nil
}

// ListByGroup returns all redemptions issued for the group.
func (r *RedemptionRepository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Redemption, error) {
	var redemptions []models.Redemption
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("issued_at ASC, id ASC").
		Find(&redemptions).Error
	return redemptions, err
}

// MarkRedeemed flips an issued code to redeemed. Returns false when the code
// was already redeemed (or does not exist) so callers can distinguish.
func (r *RedemptionRepository) MarkRedeemed(ctx context.Context, code string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Redemption{}).
		Where("code = ? AND status = ?", code, enums.RedemptionStatusIssued).
		UpdateColumns(map[string]any{
			"status":      enums.RedemptionStatusRedeemed,
			"redeemed_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListByWallet returns a wallet's redemptions newest-first.
func (r *RedemptionRepository) ListByWallet(ctx context.Context, wallet string) ([]models.Redemption, error) {
	var redemptions []models.Redemption
	err := r.db.WithContext(ctx).
		Where("wallet = ?", wallet).
		Order("issued_at DESC, id DESC").
		Find(&redemptions).Error
	return redemptions, err
}
