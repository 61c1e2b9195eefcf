package group

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/monkelabs/monke-backend/pkg/db/models"
)

// SettlementRepository provides settlement persistence. Rows are write-once.
type SettlementRepository struct {
	db *gorm.DB
}

// NewSettlementRepository builds a settlement repository.
func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *SettlementRepository) WithTx(tx *gorm.DB) *SettlementRepository {
	if tx == nil {
		return r
	}
	return &SettlementRepository{db: tx}
}

// Insert persists the settlement row.
func (r *SettlementRepository) Insert(ctx context.Context, settlement *models.Settlement) error {
	return r.db.WithContext(ctx).Create(settlement).Error
}

// FindByGroup loads the settlement for the group, nil when not settled.
func (r *SettlementRepository) FindByGroup(ctx context.Context, groupID uuid.UUID) (*models.Settlement, error) {
	var settlement models.Settlement
	err := r.db.WithContext(ctx).First(&settlement, "group_id = ?", groupID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settlement, nil
}
