package group

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	deal "github.com/monkelabs/monke-backend/internal/deals"
	"github.com/monkelabs/monke-backend/pkg/config"
	"github.com/monkelabs/monke-backend/pkg/db/models"
	"github.com/monkelabs/monke-backend/pkg/enums"
	pkgerrors "github.com/monkelabs/monke-backend/pkg/errors"
	"github.com/monkelabs/monke-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubOutbox) EmitIfNotExists(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	for _, existing := range s.events {
		if existing.EventType == event.EventType &&
			existing.AggregateType == event.AggregateType &&
			existing.AggregateID == event.AggregateID {
			return nil
		}
	}
	s.events = append(s.events, event)
	return nil
}

func (s *stubOutbox) byType(eventType enums.OutboxEventType) []outbox.DomainEvent {
	var matched []outbox.DomainEvent
	for _, event := range s.events {
		if event.EventType == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

type stubNotifier struct {
	notifications []models.Notification
}

func (s *stubNotifier) CreateTx(_ context.Context, _ *gorm.DB, notification models.Notification) error {
	s.notifications = append(s.notifications, notification)
	return nil
}

type stubActivity struct {
	events []models.ActivityEvent
}

func (s *stubActivity) RecordTx(_ context.Context, _ *gorm.DB, event models.ActivityEvent) error {
	s.events = append(s.events, event)
	return nil
}

type serviceHarness struct {
	svc      Service
	db       *gorm.DB
	outbox   *stubOutbox
	notifier *stubNotifier
	activity *stubActivity
	now      *time.Time
}

func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()

	db := setupGroupTestDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	harness := &serviceHarness{
		db:       db,
		outbox:   &stubOutbox{},
		notifier: &stubNotifier{},
		activity: &stubActivity{},
		now:      &now,
	}

	svc, err := NewService(ServiceParams{
		TxRunner:    gormTxRunner{db: db},
		Groups:      NewRepository(db),
		Members:     NewMemberRepository(db),
		Settlements: NewSettlementRepository(db),
		Redemptions: NewRedemptionRepository(db),
		Deals:       deal.NewRepository(db),
		Outbox:      harness.outbox,
		Notifier:    harness.notifier,
		Activity:    harness.activity,
		Config: config.GroupDealsConfig{
			MinParticipantsDefault: 2,
			MomentumWindowRatio:    0.25,
			MomentumBonusPoints:    2,
			LockWaitTimeout:        time.Second,
			DefaultGroupTTL:        72 * time.Hour,
		},
		Now: func() time.Time { return *harness.now },
	})
	require.NoError(t, err)
	harness.svc = svc
	return harness
}

func (h *serviceHarness) seedDeal(t *testing.T, mode enums.TierMode, minParticipants int, tiers []models.DealTier) *models.Deal {
	t.Helper()
	dealRow := &models.Deal{
		ID:              uuid.New(),
		MerchantID:      uuid.New(),
		Title:           "Bulk roast bundle",
		BasePriceCents:  2500,
		TierMode:        mode,
		MinParticipants: minParticipants,
		StartsAt:        h.now.Add(-time.Hour),
		EndsAt:          h.now.Add(23 * time.Hour),
		Status:          enums.DealStatusActive,
	}
	require.NoError(t, h.db.Create(dealRow).Error)
	for i := range tiers {
		tiers[i].DealID = dealRow.ID
		require.NoError(t, h.db.Create(&tiers[i]).Error)
	}
	dealRow.Tiers = tiers
	return dealRow
}

func assertGroupCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestCreateGroupHostAutoJoins(t *testing.T) {
	h := newServiceHarness(t)
	dealRow := h.seedDeal(t, enums.TierModeByCount, 2, ladder([2]int{5, 5}))

	created, err := h.svc.CreateGroup(context.Background(), CreateGroupInput{
		DealID:     dealRow.ID,
		HostWallet: "host-wallet",
	})
	require.NoError(t, err)

	assert.Equal(t, enums.GroupStatusForming, created.Status)
	assert.Equal(t, 1, created.ParticipantsCount)
	assert.True(t, created.TotalPledged.Equal(decimal.NewFromInt(1)))
	// TTL outruns the deal window, so expiry clamps to the deal end.
	assert.True(t, created.ExpiresAt.Equal(dealRow.EndsAt))

	require.Len(t, h.outbox.byType(enums.EventGroupCreated), 1)
	require.Len(t, h.activity.events, 1)
	assert.Equal(t, enums.ActivityGroupCreated, h.activity.events[0].Type)
}

func TestCreateGroupRejectsUnknownOrClosedDeal(t *testing.T) {
	h := newServiceHarness(t)

	_, err := h.svc.CreateGroup(context.Background(), CreateGroupInput{DealID: uuid.New(), HostWallet: "host"})
	assertGroupCode(t, err, pkgerrors.CodeDealNotFound)

	dealRow := h.seedDeal(t, enums.TierModeByCount, 2, nil)
	require.NoError(t, h.db.Model(&models.Deal{}).Where("id = ?", dealRow.ID).UpdateColumn("status", enums.DealStatusClosed).Error)

	_, err = h.svc.CreateGroup(context.Background(), CreateGroupInput{DealID: dealRow.ID, HostWallet: "host"})
	assertGroupCode(t, err, pkgerrors.CodeInvalidStateTransition)
}

func TestCreateGroupVolumeDealRequiresPledge(t *testing.T) {
	h := newServiceHarness(t)
	dealRow := h.seedDeal(t, enums.TierModeByVolume, 2, ladder([2]int{10, 8}))

	_, err := h.svc.CreateGroup(context.Background(), CreateGroupInput{DealID: dealRow.ID, HostWallet: "host"})
	assertGroupCode(t, err, pkgerrors.CodeInvalidPledge)

	created, err := h.svc.CreateGroup(context.Background(), CreateGroupInput{
		DealID:      dealRow.ID,
		HostWallet:  "host",
		PledgeUnits: decimal.RequireFromString("2.5"),
	})
	require.NoError(t, err)
	assert.True(t, created.TotalPledged.Equal(decimal.RequireFromString("2.5")))
}

func TestJoinGroupRecomputesProgress(t *testing.T) {
	h := newServiceHarness(t)
	dealRow := h.seedDeal(t, enums.TierModeByCount, 2, ladder([2]int{2, 5}))
	created, err := h.svc.CreateGroup(context.Background(), CreateGroupInput{DealID: dealRow.ID, HostWallet: "host"})
	require.NoError(t, err)

	joined, err := h.svc.JoinGroup(context.Background(), JoinGroupInput{GroupID: created.ID, Wallet: "wallet-2"})
	require.NoError(t, err)

	assert.Equal(t, 2, joined.ParticipantsCount)
	assert.Equal(t, 1, joined.CurrentTierRank)
	assert.Equal(t, 5, joined.CurrentDiscountPercent)
	require.Len(t, h.outbox.byType(enums.EventGroupJoined), 1)
}

func TestJoinGroupCountDealNormalizesPledge(t *testing.T) {
	h := newServiceHarness(t)
	dealRow := h.seedDeal(t, enums.TierModeByCount, 2, ladder([2]int{2, 5}))
	created, err := h.svc.CreateGroup(context.Background(), CreateGroupInput{DealID: dealRow.ID, HostWallet: "host"})
	require.NoError(t, err)

	// An oversized pledge on a count deal stores as one unit so a single
	// wallet cannot inflate the tier ladder.
	joined, err := h.svc.JoinGroup(context.Background(), JoinGroupInput{
		GroupID:     created.ID,
		Wallet:      "wallet-2",
		PledgeUnits: decimal.NewFromInt(5),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, joined.ParticipantsCount)
	assert.True(t, joined.TotalPledged.Equal(decimal.NewFromInt(2)))

	_, err = h.svc.JoinGroup(context.Background(), JoinGroupInput{
		GroupID:     created.ID,
		Wallet:      "wallet-3",
		PledgeUnits: decimal.NewFromInt(-1),
	})
	assertGroupCode(t, err, pkgerrors.CodeInvalidPledge)
}

func TestJoinGroupDuplicateWallet(t *testing.T) {
	h := newServiceHarness(t)
	dealRow := h.seedDeal(t, enums.TierModeByCount, 2, nil)
	created, err := h.svc.CreateGroup(context.Background(), CreateGroupInput{DealID: dealRow.ID, HostWallet: "host"})
	require.NoError(t, err)

	_, err = h.svc.JoinGroup(context.Background(), JoinGroupInput{GroupID: created.ID, Wallet: "host"})
	assertGroupCode(t, err, pkgerrors.CodeDuplicateJoin)
}

func TestJoinGroupRequiresForming(t *testing.T) {
	h := newServiceHarness(t)
	groupRow := seedGroup(t, h.db, uuid.New(), enums.GroupStatusLocked, h.now.Add(time.Hour))

	_, err := h.svc.JoinGroup(context.Background(), JoinGroupInput{GroupID: groupRow.ID, Wallet: "wallet-2"})
	assertGroupCode(t, err, pkgerrors.CodeInvalidStateTransition)
}

func TestJoinGroupAfterExpiryRejected(t *testing.T) {
	h := newServiceHarness(t)
	dealRow := h.seedDeal(t, enums.TierModeByCount, 2, nil)
	created, err := h.svc.CreateGroup(context.Background(), CreateGroupInput{DealID: dealRow.ID, HostWallet: "host"})
	require.NoError(t, err)

	// The sweep has not run yet, but the wall clock is past expiry.
	*h.now = created.ExpiresAt.Add(time.Minute)

	_, err = h.svc.JoinGroup(context.Background(), JoinGroupInput{GroupID: created.ID, Wallet: "wallet-2"})
	assertGroupCode(t, err, pkgerrors.CodeInvalidStateTransition)
}

func TestLockGroupBelowMinimumRollsBack(t *testing.T) {
	h := newServiceHarness(t)
	dealRow := h.seedDeal(t, enums.TierModeByCount, 3, nil)
	created, err := h.svc.CreateGroup(context.Background(), CreateGroupInput{DealID: dealRow.ID, HostWallet: "host"})
	require.NoError(t, err)

	_, err = h.svc.LockGroup(context.Background(), created.ID, "host")
	assertGroupCode(t, err, pkgerrors.CodeMinParticipantsNotMet)

	found, err := NewRepository(h.db).FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.GroupStatusForming, found.Status)
	assert.Empty(t, h.outbox.byType(enums.EventGroupLocked))
}

func TestLockGroupSettlesOnce(t *testing.T) {
	h := newServiceHarness(t)
	dealRow := h.seedDeal(t, enums.TierModeByCount, 2, ladder([2]int{2, 5}, [2]int{5, 10}))
	created, err := h.svc.CreateGroup(context.Background(), CreateGroupInput{DealID: dealRow.ID, HostWallet: "host"})
	require.NoError(t, err)
	_, err = h.svc.JoinGroup(context.Background(), JoinGroupInput{GroupID: created.ID, Wallet: "wallet-2"})
	require.NoError(t, err)

	// Move past the momentum window so the settled discount is the raw tier.
	*h.now = dealRow.StartsAt.Add(12 * time.Hour)

	settled, err := h.svc.LockGroup(context.Background(), created.ID, "host")
	require.NoError(t, err)

	assert.Equal(t, 1, settled.FinalTierRank)
	assert.Equal(t, 5, settled.FinalDiscountPercent)
	assert.False(t, settled.MomentumBonusApplied)
	require.Len(t, settled.Redemptions, 2)
	for _, redemption := range settled.Redemptions {
		assert.Equal(t, BuildRedemptionCode(created.ID, redemption.Wallet), redemption.Code)
	}

	settlement, err := NewSettlementRepository(h.db).FindByGroup(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, settlement)
	assert.Equal(t, 5, settlement.FinalDiscountPercent)

	require.Len(t, h.outbox.byType(enums.EventGroupLocked), 1)
	assert.Len(t, h.notifier.notifications, 2)

	_, err = h.svc.LockGroup(context.Background(), created.ID, "host")
	assertGroupCode(t, err, pkgerrors.CodeAlreadyLocked)
	require.Len(t, h.outbox.byType(enums.EventGroupLocked), 1)
}

func TestLockGroupMomentumBonus(t *testing.T) {
	h := newServiceHarness(t)
	dealRow := h.seedDeal(t, enums.TierModeByCount, 2, ladder([2]int{2, 5}))
	created, err := h.svc.CreateGroup(context.Background(), CreateGroupInput{DealID: dealRow.ID, HostWallet: "host"})
	require.NoError(t, err)
	_, err = h.svc.JoinGroup(context.Background(), JoinGroupInput{GroupID: created.ID, Wallet: "wallet-2"})
	require.NoError(t, err)

	// Deal runs 24h from StartsAt; one hour in is well inside the first quarter.
	settled, err := h.svc.LockGroup(context.Background(), created.ID, "host")
	require.NoError(t, err)

	assert.True(t, settled.MomentumBonusApplied)
	assert.Equal(t, 7, settled.FinalDiscountPercent)
	assert.Equal(t, 1, settled.FinalTierRank)
}

func TestLockGroupNoBonusWithoutDiscount(t *testing.T) {
	h := newServiceHarness(t)
	dealRow := h.seedDeal(t, enums.TierModeByCount, 2, ladder([2]int{10, 5}))
	created, err := h.svc.CreateGroup(context.Background(), CreateGroupInput{DealID: dealRow.ID, HostWallet: "host"})
	require.NoError(t, err)
	_, err = h.svc.JoinGroup(context.Background(), JoinGroupInput{GroupID: created.ID, Wallet: "wallet-2"})
	require.NoError(t, err)

	settled, err := h.svc.LockGroup(context.Background(), created.ID, "host")
	require.NoError(t, err)

	// No tier reached: minimum met, but no discount means no bonus either.
	assert.False(t, settled.MomentumBonusApplied)
	assert.Equal(t, 0, settled.FinalDiscountPercent)
	assert.Equal(t, 0, settled.FinalTierRank)
}

func TestCancelGroupHostOnly(t *testing.T) {
	h := newServiceHarness(t)
	dealRow := h.seedDeal(t, enums.TierModeByCount, 2, nil)
	created, err := h.svc.CreateGroup(context.Background(), CreateGroupInput{DealID: dealRow.ID, HostWallet: "host"})
	require.NoError(t, err)

	_, err = h.svc.CancelGroup(context.Background(), created.ID, CancelGroupInput{ActorWallet: "someone-else"})
	assertGroupCode(t, err, pkgerrors.CodeForbidden)

	cancelled, err := h.svc.CancelGroup(context.Background(), created.ID, CancelGroupInput{ActorWallet: "host", Reason: "changed my mind"})
	require.NoError(t, err)
	assert.Equal(t, enums.GroupStatusCancelled, cancelled.Status)
	require.Len(t, h.outbox.byType(enums.EventGroupCancelled), 1)

	// Cancelling again is a no-op.
	again, err := h.svc.CancelGroup(context.Background(), created.ID, CancelGroupInput{ActorWallet: "host"})
	require.NoError(t, err)
	assert.Equal(t, enums.GroupStatusCancelled, again.Status)
	require.Len(t, h.outbox.byType(enums.EventGroupCancelled), 1)
}

func TestCancelLockedGroupRejected(t *testing.T) {
	h := newServiceHarness(t)
	groupRow := seedGroup(t, h.db, uuid.New(), enums.GroupStatusLocked, h.now.Add(time.Hour))

	_, err := h.svc.CancelGroup(context.Background(), groupRow.ID, CancelGroupInput{ActorWallet: groupRow.HostWallet})
	assertGroupCode(t, err, pkgerrors.CodeInvalidStateTransition)
}

func TestExpireGroup(t *testing.T) {
	h := newServiceHarness(t)
	dealRow := h.seedDeal(t, enums.TierModeByCount, 2, nil)
	created, err := h.svc.CreateGroup(context.Background(), CreateGroupInput{DealID: dealRow.ID, HostWallet: "host"})
	require.NoError(t, err)

	_, err = h.svc.ExpireGroup(context.Background(), created.ID)
	assertGroupCode(t, err, pkgerrors.CodeInvalidStateTransition)

	*h.now = created.ExpiresAt.Add(time.Minute)
	expired, err := h.svc.ExpireGroup(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.GroupStatusExpired, expired.Status)
	require.Len(t, h.outbox.byType(enums.EventGroupExpired), 1)
	require.Len(t, h.notifier.notifications, 1)
	assert.Equal(t, enums.NotificationTypeGroupExpired, h.notifier.notifications[0].Type)

	// Terminal groups make a repeat sweep a no-op.
	again, err := h.svc.ExpireGroup(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.GroupStatusExpired, again.Status)
	require.Len(t, h.outbox.byType(enums.EventGroupExpired), 1)
}

func TestExpireGroupRefusesWhenMinimumMet(t *testing.T) {
	h := newServiceHarness(t)
	dealRow := h.seedDeal(t, enums.TierModeByCount, 2, ladder([2]int{2, 5}))
	created, err := h.svc.CreateGroup(context.Background(), CreateGroupInput{DealID: dealRow.ID, HostWallet: "host"})
	require.NoError(t, err)
	_, err = h.svc.JoinGroup(context.Background(), JoinGroupInput{GroupID: created.ID, Wallet: "wallet-2"})
	require.NoError(t, err)

	// Two members meet the minimum, so the overdue group must settle
	// through a lock rather than forfeit.
	*h.now = created.ExpiresAt.Add(time.Minute)
	_, err = h.svc.ExpireGroup(context.Background(), created.ID)
	assertGroupCode(t, err, pkgerrors.CodeStateConflict)

	status, err := h.svc.GetGroupStatus(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.GroupStatusForming, status.Group.Status)
	require.Empty(t, h.outbox.byType(enums.EventGroupExpired))

	settled, err := h.svc.LockGroup(context.Background(), created.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, settled.ParticipantsCount)
}

func TestGetGroupStatusLiveProgress(t *testing.T) {
	h := newServiceHarness(t)
	dealRow := h.seedDeal(t, enums.TierModeByCount, 2, ladder([2]int{2, 5}, [2]int{5, 10}))
	created, err := h.svc.CreateGroup(context.Background(), CreateGroupInput{DealID: dealRow.ID, HostWallet: "host"})
	require.NoError(t, err)

	// A row written outside the service still shows up in the live view.
	seedMember(t, h.db, created.ID, "wallet-2", enums.MemberStatusPledged, "1")

	status, err := h.svc.GetGroupStatus(context.Background(), created.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, status.Group.ParticipantsCount)
	assert.Equal(t, 1, status.Group.CurrentTierRank)
	require.NotNil(t, status.NextTierRank)
	assert.Equal(t, 2, *status.NextTierRank)
	assert.True(t, status.NextTierProgress.Equal(decimal.NewFromInt(3)))
	require.Len(t, status.Members, 2)
}

func TestGetGroupStatusReadDoesNotWriteDerived(t *testing.T) {
	h := newServiceHarness(t)
	dealRow := h.seedDeal(t, enums.TierModeByCount, 2, ladder([2]int{2, 5}))
	created, err := h.svc.CreateGroup(context.Background(), CreateGroupInput{DealID: dealRow.ID, HostWallet: "host"})
	require.NoError(t, err)

	// A member row the cached columns have not absorbed yet. The status
	// read reports it live but must not flush it back, only the row-locked
	// paths update the cache.
	seedMember(t, h.db, created.ID, "wallet-2", enums.MemberStatusPledged, "1")

	status, err := h.svc.GetGroupStatus(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Group.ParticipantsCount)

	var stored models.Group
	require.NoError(t, h.db.First(&stored, "id = ?", created.ID).Error)
	assert.Equal(t, 1, stored.ParticipantsCount)
}

func TestGetGroupStatusMissing(t *testing.T) {
	h := newServiceHarness(t)

	_, err := h.svc.GetGroupStatus(context.Background(), uuid.New())
	assertGroupCode(t, err, pkgerrors.CodeGroupNotFound)
}

func TestRedeemCodeOnce(t *testing.T) {
	h := newServiceHarness(t)
	dealRow := h.seedDeal(t, enums.TierModeByCount, 2, ladder([2]int{2, 5}))
	created, err := h.svc.CreateGroup(context.Background(), CreateGroupInput{DealID: dealRow.ID, HostWallet: "host"})
	require.NoError(t, err)
	_, err = h.svc.JoinGroup(context.Background(), JoinGroupInput{GroupID: created.ID, Wallet: "wallet-2"})
	require.NoError(t, err)
	settled, err := h.svc.LockGroup(context.Background(), created.ID, "host")
	require.NoError(t, err)

	code := settled.Redemptions[0].Code
	redeemed, err := h.svc.RedeemCode(context.Background(), code, "merchant")
	require.NoError(t, err)
	assert.Equal(t, enums.RedemptionStatusRedeemed, redeemed.Status)
	require.NotNil(t, redeemed.RedeemedAt)
	require.Len(t, h.outbox.byType(enums.EventCodeRedeemed), 1)

	_, err = h.svc.RedeemCode(context.Background(), code, "merchant")
	assertGroupCode(t, err, pkgerrors.CodeConflict)

	_, err = h.svc.RedeemCode(context.Background(), "MONKE-deadbeef-deadbeef", "merchant")
	assertGroupCode(t, err, pkgerrors.CodeNotFound)
}

func TestRecomputeProgressTerminalReadOnly(t *testing.T) {
	h := newServiceHarness(t)
	dealRow := h.seedDeal(t, enums.TierModeByCount, 2, ladder([2]int{2, 5}))
	created, err := h.svc.CreateGroup(context.Background(), CreateGroupInput{DealID: dealRow.ID, HostWallet: "host"})
	require.NoError(t, err)
	_, err = h.svc.JoinGroup(context.Background(), JoinGroupInput{GroupID: created.ID, Wallet: "wallet-2"})
	require.NoError(t, err)
	settled, err := h.svc.LockGroup(context.Background(), created.ID, "host")
	require.NoError(t, err)

	// A withdrawal after lock changes the computed value but not the snapshot.
	require.NoError(t, h.db.Model(&models.GroupMember{}).
		Where("group_id = ? AND wallet = ?", created.ID, "wallet-2").
		UpdateColumn("status", enums.MemberStatusWithdrawn).Error)

	progress, err := h.svc.RecomputeProgress(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, progress.ParticipantsCount)

	found, err := NewRepository(h.db).FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, settled.ParticipantsCount, found.ParticipantsCount)
	assert.Equal(t, settled.FinalDiscountPercent, found.CurrentDiscountPercent)
}
