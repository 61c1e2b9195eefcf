package group

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/monkelabs/monke-backend/pkg/db/models"
	"github.com/monkelabs/monke-backend/pkg/enums"
)

// MemberRepository provides group member persistence.
type MemberRepository struct {
	db *gorm.DB
}

// NewMemberRepository builds a member repository.
func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *MemberRepository) WithTx(tx *gorm.DB) *MemberRepository {
	if tx == nil {
		return r
	}
	return &MemberRepository{db: tx}
}

// Insert adds one member row.
func (r *MemberRepository) Insert(ctx context.Context, member *models.GroupMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// ListActiveByGroup returns the non-withdrawn members in join order.
func (r *MemberRepository) ListActiveByGroup(ctx context.Context, groupID uuid.UUID) ([]models.GroupMember, error) {
	var members []models.GroupMember
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND status != ?", groupID, enums.MemberStatusWithdrawn).
		Order("joined_at ASC, id ASC").
		Find(&members).Error
	return members, err
}

// HasActiveMember reports whether the wallet holds a non-withdrawn row.
func (r *MemberRepository) HasActiveMember(ctx context.Context, groupID uuid.UUID, wallet string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.GroupMember{}).
		Where("group_id = ? AND wallet = ? AND status != ?", groupID, wallet, enums.MemberStatusWithdrawn).
		Count(&count).Error
	return count > 0, err
}
