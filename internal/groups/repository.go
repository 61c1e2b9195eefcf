package group

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/monkelabs/monke-backend/pkg/db/models"
	"github.com/monkelabs/monke-backend/pkg/enums"
	"github.com/monkelabs/monke-backend/pkg/pagination"
)

// Repository provides group persistence. The group row is the single
// serialization point for the lock protocol; FindForUpdate is the only
// entry that takes the row lock.
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

// Create persists the group row.
func (r *Repository) Create(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

// FindByID loads the group without associations, nil when missing.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	var group models.Group
	err := r.db.WithContext(ctx).First(&group, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

// FindForUpdate loads the group under an exclusive row lock with a bounded
// wait. Must run inside a transaction; pg raises 55P03 when the wait expires.
// Non-postgres dialects (the sqlite test harness) skip the locking clause.
func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID, wait time.Duration) (*models.Group, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		if wait > 0 {
			timeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", wait.Milliseconds())
			if err := r.db.WithContext(ctx).Exec(timeout).Error; err != nil {
				return nil, err
			}
		}
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var group models.Group
	err := query.First(&group, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

// UpdateDerived writes the four aggregator-owned fields as absolute values.
func (r *Repository) UpdateDerived(ctx context.Context, id uuid.UUID, progress Progress) error {
	return r.db.WithContext(ctx).
		Model(&models.Group{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"participants_count":       progress.ParticipantsCount,
			"total_pledged":            progress.TotalPledged,
			"current_tier_rank":        progress.TierRank,
			"current_discount_percent": progress.DiscountPercent,
		}).Error
}

// MarkLocked transitions the group to locked with its final snapshot.
func (r *Repository) MarkLocked(ctx context.Context, id uuid.UUID, progress Progress, finalDiscount int, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Group{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"status":                   enums.GroupStatusLocked,
			"participants_count":       progress.ParticipantsCount,
			"total_pledged":            progress.TotalPledged,
			"current_tier_rank":        progress.TierRank,
			"current_discount_percent": finalDiscount,
			"locked_at":                at,
			"updated_at":               at,
		}).Error
}

// MarkCancelled transitions the group to cancelled.
func (r *Repository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Group{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"status":       enums.GroupStatusCancelled,
			"cancelled_at": at,
			"updated_at":   at,
		}).Error
}

// MarkExpired transitions the group to expired.
func (r *Repository) MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Group{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"status":     enums.GroupStatusExpired,
			"expired_at": at,
			"updated_at": at,
		}).Error
}

// ListByDeal returns a page of groups for one deal, newest first.
func (r *Repository) ListByDeal(ctx context.Context, dealID uuid.UUID, params pagination.Params) ([]models.Group, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Group{}).Where("deal_id = ?", dealID)
	return r.listPage(query, params)
}

// ListByWallet returns groups the wallet participates in (non-withdrawn row).
func (r *Repository) ListByWallet(ctx context.Context, wallet string, params pagination.Params) ([]models.Group, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Group{}).
		Joins("JOIN group_members gm ON gm.group_id = groups.id").
		Where("gm.wallet = ? AND gm.status != ?", wallet, enums.MemberStatusWithdrawn)
	return r.listPage(query, params)
}

func (r *Repository) listPage(query *gorm.DB, params pagination.Params) ([]models.Group, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if cursor != nil {
		query = query.Where("(groups.created_at, groups.id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var groups []models.Group
	if err := query.Order("groups.created_at DESC, groups.id DESC").Limit(limit).Find(&groups).Error; err != nil {
		return nil, nil, err
	}

	if len(groups) > normalized {
		groups = groups[:normalized]
		// Cursor points at the last returned row; the next page filters
		// strictly below it.
		last := groups[normalized-1]
		return groups, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return groups, nil, nil
}

// ListOverdueForming returns ids of forming groups whose expiry has passed.
// Used by the sweep worker; batched so one slow sweep cannot starve the loop.
func (r *Repository) ListOverdueForming(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Group{}).
		Where("status = ? AND expires_at < ?", enums.GroupStatusForming, now).
		Order("expires_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// SumPledged is a cross-check helper for diagnostics; the aggregator itself
// sums in Go off loaded member rows.
func (r *Repository) SumPledged(ctx context.Context, groupID uuid.UUID) (decimal.Decimal, error) {
	var raw *string
	err := r.db.WithContext(ctx).
		Model(&models.GroupMember{}).
		Select("CAST(SUM(pledge_units) AS TEXT)").
		Where("group_id = ? AND status != ?", groupID, enums.MemberStatusWithdrawn).
		Scan(&raw).Error
	if err != nil || raw == nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(*raw)
}
