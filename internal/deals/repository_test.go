package deal

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

func setupDealsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	merchants := `
CREATE TABLE IF NOT EXISTS merchants (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  wallet TEXT NOT NULL UNIQUE,
  created_at DATETIME
);`
	deals := `
CREATE TABLE IF NOT EXISTS deals (
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
);`
	dealTiers := `
CREATE TABLE IF NOT EXISTS deal_tiers (
  id TEXT PRIMARY KEY,
  deal_id TEXT NOT NULL,
  rank INTEGER NOT NULL,
  threshold TEXT NOT NULL,
  discount_percent INTEGER NOT NULL,
  created_at DATETIME,
  UNIQUE (deal_id, rank)
);`
	for _, ddl := range []string{merchants, deals, dealTiers} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func mustCreateTestMerchant(t *testing.T, db *gorm.DB) *models.Merchant {
	t.Helper()
	merchant := &models.Merchant{
		ID:     uuid.New(),
		Name:   "Test Roaster",
		Wallet: "wallet-" + uuid.NewString(),
	}
	require.NoError(t, db.Create(merchant).Error)
	return merchant
}

func newTestDeal(merchantID uuid.UUID) *models.Deal {
	now := time.Now().UTC()
	dealID := uuid.New()
	return &models.Deal{
		ID:              dealID,
		MerchantID:      merchantID,
		Title:           "Case of beans",
		BasePriceCents:  2500,
		TierMode:        enums.TierModeByCount,
		MinParticipants: 2,
		StartsAt:        now,
		EndsAt:          now.Add(48 * time.Hour),
		Status:          enums.DealStatusActive,
		Tiers: []models.DealTier{
			{ID: uuid.New(), DealID: dealID, Rank: 2, Threshold: decimal.NewFromInt(6), DiscountPercent: 10},
			{ID: uuid.New(), DealID: dealID, Rank: 1, Threshold: decimal.NewFromInt(3), DiscountPercent: 5},
		},
	}
}

func TestRepositoryCreateAndFindOrdersTiers(t *testing.T) {
	db := setupDealsTestDB(t)
	repo := NewRepository(db)
	merchant := mustCreateTestMerchant(t, db)

	created := newTestDeal(merchant.ID)
	require.NoError(t, repo.Create(context.Background(), created))

	found, err := repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Len(t, found.Tiers, 2)
	assert.Equal(t, 1, found.Tiers[0].Rank)
	assert.Equal(t, 2, found.Tiers[1].Rank)
	assert.True(t, found.Tiers[0].Threshold.Equal(decimal.NewFromInt(3)))
}

func TestRepositoryFindByIDMissing(t *testing.T) {
	db := setupDealsTestDB(t)
	repo := NewRepository(db)

	found, err := repo.FindByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRepositoryListActiveSkipsClosed(t *testing.T) {
	db := setupDealsTestDB(t)
	repo := NewRepository(db)
	merchant := mustCreateTestMerchant(t, db)

	active := newTestDeal(merchant.ID)
	require.NoError(t, repo.Create(context.Background(), active))

	closed := newTestDeal(merchant.ID)
	closed.Status = enums.DealStatusClosed
	require.NoError(t, repo.Create(context.Background(), closed))

	deals, next, err := repo.ListActive(context.Background(), pagination.Params{Limit: 10})
	require.NoError(t, err)
	assert.Nil(t, next)
	require.Len(t, deals, 1)
	assert.Equal(t, active.ID, deals[0].ID)
}

func TestRepositoryUpdateStatus(t *testing.T) {
	db := setupDealsTestDB(t)
	repo := NewRepository(db)
	merchant := mustCreateTestMerchant(t, db)

	deal := newTestDeal(merchant.ID)
	require.NoError(t, repo.Create(context.Background(), deal))

	updated, err := repo.UpdateStatus(context.Background(), deal.ID, enums.DealStatusClosed)
	require.NoError(t, err)
	assert.True(t, updated)

	missing, err := repo.UpdateStatus(context.Background(), uuid.New(), enums.DealStatusClosed)
	require.NoError(t, err)
	assert.False(t, missing)
}

func TestMerchantRepositoryRoundTrip(t *testing.T) {
	db := setupDealsTestDB(t)
	repo := NewMerchantRepository(db)

	merchant := &models.Merchant{ID: uuid.New(), Name: "Roaster", Wallet: "wallet-rt"}
	require.NoError(t, repo.Create(context.Background(), merchant))

	byID, err := repo.FindByID(context.Background(), merchant.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)

	byWallet, err := repo.FindByWallet(context.Background(), "wallet-rt")
	require.NoError(t, err)
	require.NotNil(t, byWallet)
	assert.Equal(t, merchant.ID, byWallet.ID)

	missing, err := repo.FindByWallet(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
