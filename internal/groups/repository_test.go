package group

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/monkelabs/monke-backend/pkg/db/models"
	"github.com/monkelabs/monke-backend/pkg/enums"
	"github.com/monkelabs/monke-backend/pkg/pagination"
)

func setupGroupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS merchants (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  wallet TEXT NOT NULL UNIQUE,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS deals (
  id TEXT PRIMARY KEY,
  merchant_id TEXT NOT NULL,
  title TEXT NOT NULL,
  base_price_cents INTEGER NOT NULL,
  tier_mode TEXT NOT NULL,
  min_participants INTEGER NOT NULL DEFAULT 2,
  starts_at DATETIME NOT NULL,
  ends_at DATETIME NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS deal_tiers (
  id TEXT PRIMARY KEY,
  deal_id TEXT NOT NULL,
  rank INTEGER NOT NULL,
  threshold TEXT NOT NULL,
  discount_percent INTEGER NOT NULL,
  created_at DATETIME,
  UNIQUE (deal_id, rank)
);`,
		`CREATE TABLE IF NOT EXISTS groups (
  id TEXT PRIMARY KEY,
  deal_id TEXT NOT NULL,
  host_wallet TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'forming',
  current_tier_rank INTEGER NOT NULL DEFAULT 0,
  current_discount_percent INTEGER NOT NULL DEFAULT 0,
  participants_count INTEGER NOT NULL DEFAULT 0,
  total_pledged TEXT NOT NULL DEFAULT '0',
  expires_at DATETIME NOT NULL,
  locked_at DATETIME,
  cancelled_at DATETIME,
  expired_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS group_members (
  id TEXT PRIMARY KEY,
  group_id TEXT NOT NULL,
  wallet TEXT NOT NULL,
  pledge_units TEXT NOT NULL DEFAULT '1',
  status TEXT NOT NULL DEFAULT 'pledged',
  joined_at DATETIME NOT NULL
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_group_members_active_wallet
  ON group_members (group_id, wallet) WHERE status != 'withdrawn';`,
		`CREATE TABLE IF NOT EXISTS settlements (
  id TEXT PRIMARY KEY,
  group_id TEXT NOT NULL UNIQUE,
  final_tier_rank INTEGER NOT NULL,
  final_discount_percent INTEGER NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS redemptions (
  id TEXT PRIMARY KEY,
  group_id TEXT NOT NULL,
  wallet TEXT NOT NULL,
  code TEXT NOT NULL UNIQUE,
  qr_payload TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'issued',
  issued_at DATETIME NOT NULL,
  redeemed_at DATETIME
);`,
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedGroup(t *testing.T, db *gorm.DB, dealID uuid.UUID, status enums.GroupStatus, expiresAt time.Time) *models.Group {
	t.Helper()
	groupRow := &models.Group{
		ID:           uuid.New(),
		DealID:       dealID,
		HostWallet:   "host-" + uuid.NewString()[:8],
		Status:       status,
		TotalPledged: decimal.Zero,
		ExpiresAt:    expiresAt,
	}
	require.NoError(t, db.Create(groupRow).Error)
	return groupRow
}

func seedMember(t *testing.T, db *gorm.DB, groupID uuid.UUID, wallet string, status enums.MemberStatus, pledge string) *models.GroupMember {
	t.Helper()
	row := &models.GroupMember{
		ID:          uuid.New(),
		GroupID:     groupID,
		Wallet:      wallet,
		PledgeUnits: decimal.RequireFromString(pledge),
		Status:      status,
		JoinedAt:    time.Now().UTC(),
	}
	require.NoError(t, db.Create(row).Error)
	return row
}

func TestGroupRepositoryLifecycleMarks(t *testing.T) {
	db := setupGroupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	groupRow := seedGroup(t, db, uuid.New(), enums.GroupStatusForming, time.Now().Add(time.Hour))

	now := time.Now().UTC().Truncate(time.Second)
	progress := Progress{ParticipantsCount: 3, TotalPledged: decimal.NewFromInt(3), TierRank: 1, DiscountPercent: 5}
	require.NoError(t, repo.MarkLocked(ctx, groupRow.ID, progress, 7, now))

	found, err := repo.FindByID(ctx, groupRow.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, enums.GroupStatusLocked, found.Status)
	assert.Equal(t, 3, found.ParticipantsCount)
	assert.Equal(t, 1, found.CurrentTierRank)
	assert.Equal(t, 7, found.CurrentDiscountPercent)
	require.NotNil(t, found.LockedAt)

	other := seedGroup(t, db, uuid.New(), enums.GroupStatusForming, time.Now().Add(time.Hour))
	require.NoError(t, repo.MarkCancelled(ctx, other.ID, now))
	cancelled, err := repo.FindByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.GroupStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
}

func TestGroupRepositoryUpdateDerived(t *testing.T) {
	db := setupGroupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	groupRow := seedGroup(t, db, uuid.New(), enums.GroupStatusForming, time.Now().Add(time.Hour))

	progress := Progress{ParticipantsCount: 4, TotalPledged: decimal.RequireFromString("6.5"), TierRank: 2, DiscountPercent: 10}
	require.NoError(t, repo.UpdateDerived(ctx, groupRow.ID, progress))

	found, err := repo.FindByID(ctx, groupRow.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, found.ParticipantsCount)
	assert.True(t, found.TotalPledged.Equal(decimal.RequireFromString("6.5")))
	assert.Equal(t, 2, found.CurrentTierRank)
	assert.Equal(t, 10, found.CurrentDiscountPercent)
}

func TestGroupRepositoryFindMissingReturnsNil(t *testing.T) {
	db := setupGroupTestDB(t)
	repo := NewRepository(db)

	found, err := repo.FindByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, found)

	locked, err := repo.FindForUpdate(context.Background(), uuid.New(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, locked)
}

func TestGroupRepositoryListByDealPagination(t *testing.T) {
	db := setupGroupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	dealID := uuid.New()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		groupRow := seedGroup(t, db, dealID, enums.GroupStatusForming, time.Now().Add(time.Hour))
		require.NoError(t, db.Model(&models.Group{}).
			Where("id = ?", groupRow.ID).
			UpdateColumn("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}
	seedGroup(t, db, uuid.New(), enums.GroupStatusForming, time.Now().Add(time.Hour))

	page, next, err := repo.ListByDeal(ctx, dealID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	rest, last, err := repo.ListByDeal(ctx, dealID, pagination.Params{Limit: 2, Cursor: pagination.EncodeCursor(*next)})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Nil(t, last)

	// Both pages together cover every row exactly once.
	seen := map[uuid.UUID]bool{}
	for _, row := range append(page, rest...) {
		assert.False(t, seen[row.ID], "group %s returned twice", row.ID)
		seen[row.ID] = true
	}
	assert.Len(t, seen, 3)
}

func TestGroupRepositoryListByWallet(t *testing.T) {
	db := setupGroupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	joined := seedGroup(t, db, uuid.New(), enums.GroupStatusForming, time.Now().Add(time.Hour))
	withdrawnFrom := seedGroup(t, db, uuid.New(), enums.GroupStatusForming, time.Now().Add(time.Hour))
	seedMember(t, db, joined.ID, "wallet-1", enums.MemberStatusPledged, "1")
	seedMember(t, db, withdrawnFrom.ID, "wallet-1", enums.MemberStatusWithdrawn, "1")

	page, _, err := repo.ListByWallet(ctx, "wallet-1", pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, joined.ID, page[0].ID)
}

func TestGroupRepositoryListOverdueForming(t *testing.T) {
	db := setupGroupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	overdue := seedGroup(t, db, uuid.New(), enums.GroupStatusForming, now.Add(-time.Minute))
	seedGroup(t, db, uuid.New(), enums.GroupStatusForming, now.Add(time.Hour))
	lockedOverdue := seedGroup(t, db, uuid.New(), enums.GroupStatusLocked, now.Add(-time.Minute))

	ids, err := repo.ListOverdueForming(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, overdue.ID, ids[0])
	assert.NotContains(t, ids, lockedOverdue.ID)
}

func TestMemberRepositoryActiveWalletIndex(t *testing.T) {
	db := setupGroupTestDB(t)
	repo := NewMemberRepository(db)
	ctx := context.Background()
	groupID := uuid.New()

	seedMember(t, db, groupID, "wallet-1", enums.MemberStatusPledged, "1")

	dup := &models.GroupMember{
		ID:          uuid.New(),
		GroupID:     groupID,
		Wallet:      "wallet-1",
		PledgeUnits: decimal.NewFromInt(1),
		Status:      enums.MemberStatusPledged,
		JoinedAt:    time.Now().UTC(),
	}
	err := repo.Insert(ctx, dup)
	require.Error(t, err)

	// A withdrawn row does not block rejoining.
	seedMember(t, db, groupID, "wallet-2", enums.MemberStatusWithdrawn, "1")
	rejoin := &models.GroupMember{
		ID:          uuid.New(),
		GroupID:     groupID,
		Wallet:      "wallet-2",
		PledgeUnits: decimal.NewFromInt(1),
		Status:      enums.MemberStatusPledged,
		JoinedAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.Insert(ctx, rejoin))

	has, err := repo.HasActiveMember(ctx, groupID, "wallet-1")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestMemberRepositoryListActiveByGroup(t *testing.T) {
	db := setupGroupTestDB(t)
	repo := NewMemberRepository(db)
	ctx := context.Background()
	groupID := uuid.New()

	seedMember(t, db, groupID, "wallet-1", enums.MemberStatusPledged, "1")
	seedMember(t, db, groupID, "wallet-2", enums.MemberStatusConfirmed, "2")
	seedMember(t, db, groupID, "wallet-3", enums.MemberStatusWithdrawn, "1")

	members, err := repo.ListActiveByGroup(ctx, groupID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	for _, m := range members {
		assert.NotEqual(t, enums.MemberStatusWithdrawn, m.Status)
	}
}

func TestSettlementRepositoryUniquePerGroup(t *testing.T) {
	db := setupGroupTestDB(t)
	repo := NewSettlementRepository(db)
	ctx := context.Background()
	groupID := uuid.New()

	require.NoError(t, repo.Insert(ctx, &models.Settlement{ID: uuid.New(), GroupID: groupID, FinalTierRank: 1, FinalDiscountPercent: 7}))

	err := repo.Insert(ctx, &models.Settlement{ID: uuid.New(), GroupID: groupID, FinalTierRank: 1, FinalDiscountPercent: 7})
	require.Error(t, err)

	found, err := repo.FindByGroup(ctx, groupID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 7, found.FinalDiscountPercent)

	missing, err := repo.FindByGroup(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRedemptionRepositoryMarkRedeemed(t *testing.T) {
	db := setupGroupTestDB(t)
	repo := NewRedemptionRepository(db)
	ctx := context.Background()
	groupID := uuid.New()

	redemption, err := BuildRedemption(groupID, "wallet-1", 10, uuid.New(), time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, repo.InsertBatch(ctx, []models.Redemption{redemption}))

	at := time.Now().UTC()
	ok, err := repo.MarkRedeemed(ctx, redemption.Code, at)
	require.NoError(t, err)
	assert.True(t, ok)

	again, err := repo.MarkRedeemed(ctx, redemption.Code, at)
	require.NoError(t, err)
	assert.False(t, again)

	found, err := repo.FindByCode(ctx, redemption.Code)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, enums.RedemptionStatusRedeemed, found.Status)
	require.NotNil(t, found.RedeemedAt)

	unknown, err := repo.FindByCode(ctx, "MONKE-deadbeef-deadbeef")
	require.NoError(t, err)
	assert.Nil(t, unknown)
}
