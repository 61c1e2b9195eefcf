package deal

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/monkelabs/monke-backend/pkg/db/models"
	"github.com/monkelabs/monke-backend/pkg/enums"
	"github.com/monkelabs/monke-backend/pkg/pagination"
)

// Repository provides deal and tier persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create persists the deal together with its tier ladder.
func (r *Repository) Create(ctx context.Context, deal *models.Deal) error {
	return r.db.WithContext(ctx).Create(deal).Error
}

// FindByID loads the deal with its tiers ordered by rank ascending.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	var deal models.Deal
	err := r.db.WithContext(ctx).
		Preload("Tiers", func(db *gorm.DB) *gorm.DB {
			return db.Order("rank ASC")
		}).
		First(&deal, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &deal, nil
}

// ListActive returns active deals newest-first with cursor pagination.
func (r *Repository) ListActive(ctx context.Context, params pagination.Params) ([]models.Deal, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).
		Model(&models.Deal{}).
		Preload("Tiers", func(db *gorm.DB) *gorm.DB {
			return db.Order("rank ASC")
		}).
		Where("status = ?", enums.DealStatusActive)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var deals []models.Deal
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&deals).Error; err != nil {
		return nil, nil, err
	}

	if len(deals) > normalized {
		deals = deals[:normalized]
		last := deals[normalized-1]
		return deals, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return deals, nil, nil
}

// UpdateStatus flips the deal status; the only mutation allowed after creation.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DealStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Deal{}).
		Where("id = ?", id).
		UpdateColumn("status", status)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
