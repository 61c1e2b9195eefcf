package activity

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/monkelabs/monke-backend/pkg/db/models"
)

// Repository manages persistence for activity events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.ActivityEvent) error
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.ActivityEvent, error)
	ListByWallet(ctx context.Context, wallet string, limit int) ([]models.ActivityEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an activity repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.ActivityEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.ActivityEvent, error) {
	var events []models.ActivityEvent
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) ListByWallet(ctx context.Context, wallet string, limit int) ([]models.ActivityEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []models.ActivityEvent
	if err := r.db.WithContext(ctx).
		Where("wallet = ?", wallet).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
