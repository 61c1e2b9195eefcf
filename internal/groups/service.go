package group

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	deal "github.com/monkelabs/monke-backend/internal/deals"
	"github.com/monkelabs/monke-backend/pkg/config"
	dbpkg "github.com/monkelabs/monke-backend/pkg/db"
	"github.com/monkelabs/monke-backend/pkg/db/models"
	"github.com/monkelabs/monke-backend/pkg/enums"
	pkgerrors "github.com/monkelabs/monke-backend/pkg/errors"
	"github.com/monkelabs/monke-backend/pkg/metrics"
	"github.com/monkelabs/monke-backend/pkg/outbox"
	"github.com/monkelabs/monke-backend/pkg/outbox/payloads"
	"github.com/monkelabs/monke-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type notifier interface {
	CreateTx(ctx context.Context, tx *gorm.DB, notification models.Notification) error
}

type activityRecorder interface {
	RecordTx(ctx context.Context, tx *gorm.DB, event models.ActivityEvent) error
}

// Service orchestrates the group lifecycle: creation, joins, the
// lock/settlement protocol and redemption handling.
type Service interface {
	CreateGroup(ctx context.Context, input CreateGroupInput) (*GroupDTO, error)
	JoinGroup(ctx context.Context, input JoinGroupInput) (*GroupDTO, error)
	GetGroupStatus(ctx context.Context, id uuid.UUID) (*GroupStatusDTO, error)
	LockGroup(ctx context.Context, id uuid.UUID, actorWallet string) (*SettlementDTO, error)
	CancelGroup(ctx context.Context, id uuid.UUID, input CancelGroupInput) (*GroupDTO, error)
	ExpireGroup(ctx context.Context, id uuid.UUID) (*GroupDTO, error)
	RecomputeProgress(ctx context.Context, id uuid.UUID) (*Progress, error)
	ListGroupsByDeal(ctx context.Context, dealID uuid.UUID, params pagination.Params) (*GroupListResult, error)
	ListGroupsByWallet(ctx context.Context, wallet string, params pagination.Params) (*GroupListResult, error)
	GetRedemption(ctx context.Context, code string) (*RedemptionDTO, error)
	RedeemCode(ctx context.Context, code string, actorWallet string) (*RedemptionDTO, error)
	ListRedemptionsByWallet(ctx context.Context, wallet string) ([]RedemptionDTO, error)
}

// CreateGroupInput opens a new group against a deal. The host joins
// automatically with the given pledge.
type CreateGroupInput struct {
	DealID      uuid.UUID       `json:"deal_id"`
	HostWallet  string          `json:"host_wallet"`
	PledgeUnits decimal.Decimal `json:"pledge_units"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
}

// JoinGroupInput adds a wallet to a forming group.
type JoinGroupInput struct {
	GroupID     uuid.UUID       `json:"group_id"`
	Wallet      string          `json:"wallet"`
	PledgeUnits decimal.Decimal `json:"pledge_units"`
}

// CancelGroupInput captures who cancels and why.
type CancelGroupInput struct {
	ActorWallet string `json:"actor_wallet"`
	Reason      string `json:"reason,omitempty"`
}

// ServiceParams carries the service dependencies.
type ServiceParams struct {
	TxRunner    txRunner
	Groups      *Repository
	Members     *MemberRepository
	Settlements *SettlementRepository
	Redemptions *RedemptionRepository
	Deals       *deal.Repository
	Outbox      outboxPublisher
	Notifier    notifier
	Activity    activityRecorder
	Config      config.GroupDealsConfig
	LockMetrics *metrics.LockMetrics
	Now         func() time.Time
}

type service struct {
	tx          txRunner
	groups      *Repository
	members     *MemberRepository
	settlements *SettlementRepository
	redemptions *RedemptionRepository
	deals       *deal.Repository
	outbox      outboxPublisher
	notifier    notifier
	activity    activityRecorder
	cfg         config.GroupDealsConfig
	lockMetrics *metrics.LockMetrics
	now         func() time.Time
}

// NewService builds the group service. Notifier and activity recorder are
// optional; everything else is required.
func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Groups == nil {
		return nil, fmt.Errorf("group repository required")
	}
	if params.Members == nil {
		return nil, fmt.Errorf("member repository required")
	}
	if params.Settlements == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if params.Redemptions == nil {
		return nil, fmt.Errorf("redemption repository required")
	}
	if params.Deals == nil {
		return nil, fmt.Errorf("deal repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:          params.TxRunner,
		groups:      params.Groups,
		members:     params.Members,
		settlements: params.Settlements,
		redemptions: params.Redemptions,
		deals:       params.Deals,
		outbox:      params.Outbox,
		notifier:    params.Notifier,
		activity:    params.Activity,
		cfg:         params.Config,
		lockMetrics: params.LockMetrics,
		now:         now,
	}, nil
}

func (s *service) CreateGroup(ctx context.Context, input CreateGroupInput) (*GroupDTO, error) {
	if input.HostWallet == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "host wallet is required")
	}
	if input.DealID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deal id is required")
	}

	now := s.now()
	dealRow, err := s.deals.FindByID(ctx, input.DealID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load deal")
	}
	if dealRow == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDealNotFound, "deal not found")
	}
	if dealRow.Status != enums.DealStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidStateTransition, "deal is not active")
	}
	if now.Before(dealRow.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deal has not started")
	}
	if !now.Before(dealRow.EndsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deal window has ended")
	}

	pledge, err := normalizePledge(dealRow.TierMode, input.PledgeUnits)
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(s.cfg.DefaultGroupTTL)
	if input.ExpiresAt != nil {
		expiresAt = *input.ExpiresAt
		if !expiresAt.After(now) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiry must be in the future")
		}
	}
	// Groups never outlive their deal.
	if expiresAt.After(dealRow.EndsAt) {
		expiresAt = dealRow.EndsAt
	}

	groupRow := &models.Group{
		ID:         uuid.New(),
		DealID:     dealRow.ID,
		HostWallet: input.HostWallet,
		Status:     enums.GroupStatusForming,
		ExpiresAt:  expiresAt,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		groups := s.groups.WithTx(tx)
		members := s.members.WithTx(tx)

		if err := groups.Create(ctx, groupRow); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create group")
		}
		host := &models.GroupMember{
			ID:          uuid.New(),
			GroupID:     groupRow.ID,
			Wallet:      input.HostWallet,
			PledgeUnits: pledge,
			Status:      enums.MemberStatusPledged,
			JoinedAt:    now,
		}
		if err := members.Insert(ctx, host); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert host member")
		}

		progress := ComputeProgress(dealRow.Tiers, dealRow.TierMode, []models.GroupMember{*host})
		if err := groups.UpdateDerived(ctx, groupRow.ID, progress); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write progress")
		}
		applyProgress(groupRow, progress)

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGroupCreated,
			AggregateType: enums.AggregateGroup,
			AggregateID:   groupRow.ID,
			Actor:         &outbox.ActorRef{Wallet: input.HostWallet},
			Data: payloads.GroupCreatedEvent{
				GroupID:       groupRow.ID,
				DealID:        dealRow.ID,
				MerchantID:    dealRow.MerchantID,
				CreatorWallet: input.HostWallet,
				ExpiresAt:     expiresAt,
			},
			Version:    1,
			OccurredAt: now,
		}); err != nil {
			return err
		}

		return s.recordActivity(ctx, tx, models.ActivityEvent{
			GroupID: groupRow.ID,
			Wallet:  input.HostWallet,
			Type:    enums.ActivityGroupCreated,
		})
	})
	if err != nil {
		return nil, err
	}
	return NewGroupDTO(groupRow), nil
}

func (s *service) JoinGroup(ctx context.Context, input JoinGroupInput) (*GroupDTO, error) {
	if input.Wallet == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet is required")
	}
	if input.GroupID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id is required")
	}

	now := s.now()
	var updated *models.Group
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		groups := s.groups.WithTx(tx)
		members := s.members.WithTx(tx)
		deals := s.deals.WithTx(tx)

		groupRow, err := groups.FindForUpdate(ctx, input.GroupID, s.cfg.LockWaitTimeout)
		if err != nil {
			if dbpkg.IsLockNotAvailable(err) {
				return pkgerrors.Wrap(pkgerrors.CodeLockTimeout, err, "group row busy")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load group")
		}
		if groupRow == nil {
			return pkgerrors.New(pkgerrors.CodeGroupNotFound, "group not found")
		}
		if groupRow.Status != enums.GroupStatusForming {
			return pkgerrors.New(pkgerrors.CodeInvalidStateTransition,
				fmt.Sprintf("group is %s, joins are only accepted while forming", groupRow.Status))
		}
		if !now.Before(groupRow.ExpiresAt) {
			return pkgerrors.New(pkgerrors.CodeInvalidStateTransition, "group has expired")
		}

		exists, err := members.HasActiveMember(ctx, groupRow.ID, input.Wallet)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check membership")
		}
		if exists {
			return pkgerrors.New(pkgerrors.CodeDuplicateJoin, "wallet already joined this group")
		}

		dealRow, err := deals.FindByID(ctx, groupRow.DealID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load deal")
		}
		if dealRow == nil {
			return pkgerrors.New(pkgerrors.CodeDealNotFound, "deal not found")
		}
		pledge, err := normalizePledge(dealRow.TierMode, input.PledgeUnits)
		if err != nil {
			return err
		}

		member := &models.GroupMember{
			ID:          uuid.New(),
			GroupID:     groupRow.ID,
			Wallet:      input.Wallet,
			PledgeUnits: pledge,
			Status:      enums.MemberStatusPledged,
			JoinedAt:    now,
		}
		if err := members.Insert(ctx, member); err != nil {
			// Backstop for the partial unique index when two joins race.
			if dbpkg.IsUniqueViolation(err, "ux_group_members_active_wallet") {
				return pkgerrors.New(pkgerrors.CodeDuplicateJoin, "wallet already joined this group")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert member")
		}

		rows, err := members.ListActiveByGroup(ctx, groupRow.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load members")
		}
		progress := ComputeProgress(dealRow.Tiers, dealRow.TierMode, rows)
		if err := groups.UpdateDerived(ctx, groupRow.ID, progress); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write progress")
		}
		applyProgress(groupRow, progress)
		updated = groupRow

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGroupJoined,
			AggregateType: enums.AggregateGroup,
			AggregateID:   groupRow.ID,
			Actor:         &outbox.ActorRef{Wallet: input.Wallet},
			Data: payloads.GroupJoinedEvent{
				GroupID:                groupRow.ID,
				DealID:                 groupRow.DealID,
				Wallet:                 input.Wallet,
				PledgeUnits:            pledge,
				ParticipantsCount:      progress.ParticipantsCount,
				TotalPledged:           progress.TotalPledged,
				CurrentTierRank:        optionalRank(progress.TierRank),
				CurrentDiscountPercent: decimal.NewFromInt(int64(progress.DiscountPercent)),
			},
			Version:    1,
			OccurredAt: now,
		}); err != nil {
			return err
		}

		return s.recordActivity(ctx, tx, models.ActivityEvent{
			GroupID: groupRow.ID,
			Wallet:  input.Wallet,
			Type:    enums.ActivityMemberJoined,
		})
	})
	if err != nil {
		return nil, err
	}
	return NewGroupDTO(updated), nil
}

func (s *service) GetGroupStatus(ctx context.Context, id uuid.UUID) (*GroupStatusDTO, error) {
	groupRow, err := s.groups.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load group")
	}
	if groupRow == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGroupNotFound, "group not found")
	}

	members, err := s.members.ListActiveByGroup(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load members")
	}

	dealRow, err := s.deals.FindByID(ctx, groupRow.DealID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load deal")
	}
	if dealRow == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDealNotFound, "deal not found")
	}

	// Forming groups report live progress computed off member rows; locked
	// groups keep their settled snapshot and everything else is frozen
	// as-is. The read path never writes the cached columns back, those
	// only move under the row lock in joins and RecomputeProgress.
	if groupRow.Status == enums.GroupStatusForming {
		progress := ComputeProgress(dealRow.Tiers, dealRow.TierMode, members)
		applyProgress(groupRow, progress)
	}

	status := &GroupStatusDTO{
		Group:            *NewGroupDTO(groupRow),
		Tiers:            deal.NewTierDTOs(dealRow.Tiers),
		Members:          NewMemberDTOs(members),
		NextTierProgress: decimal.Zero,
	}
	if groupRow.Status == enums.GroupStatusForming {
		if rank, remaining, ok := nextTier(dealRow.Tiers, dealRow.TierMode, groupRow); ok {
			status.NextTierRank = &rank
			status.NextTierProgress = remaining
		}
	}
	return status, nil
}

func (s *service) LockGroup(ctx context.Context, id uuid.UUID, actorWallet string) (*SettlementDTO, error) {
	result, err := s.lockGroup(ctx, id, actorWallet)
	s.lockMetrics.IncOutcome(lockOutcome(err))
	return result, err
}

func (s *service) lockGroup(ctx context.Context, id uuid.UUID, actorWallet string) (*SettlementDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id is required")
	}

	var result *SettlementDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		groups := s.groups.WithTx(tx)
		members := s.members.WithTx(tx)
		settlements := s.settlements.WithTx(tx)
		redemptions := s.redemptions.WithTx(tx)
		deals := s.deals.WithTx(tx)

		groupRow, err := groups.FindForUpdate(ctx, id, s.cfg.LockWaitTimeout)
		if err != nil {
			if dbpkg.IsLockNotAvailable(err) {
				return pkgerrors.Wrap(pkgerrors.CodeLockTimeout, err, "timed out waiting for group row")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load group")
		}
		if groupRow == nil {
			return pkgerrors.New(pkgerrors.CodeGroupNotFound, "group not found")
		}
		switch groupRow.Status {
		case enums.GroupStatusLocked:
			return pkgerrors.New(pkgerrors.CodeAlreadyLocked, "group is already locked")
		case enums.GroupStatusCancelled, enums.GroupStatusExpired:
			return pkgerrors.New(pkgerrors.CodeInvalidStateTransition,
				fmt.Sprintf("cannot lock a %s group", groupRow.Status))
		}

		dealRow, err := deals.FindByID(ctx, groupRow.DealID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load deal")
		}
		if dealRow == nil {
			return pkgerrors.New(pkgerrors.CodeDealNotFound, "deal not found")
		}

		// Settlement always recomputes from member rows under the lock; the
		// cached columns may trail concurrent joins.
		rows, err := members.ListActiveByGroup(ctx, groupRow.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load members")
		}
		progress := ComputeProgress(dealRow.Tiers, dealRow.TierMode, rows)

		minParticipants := dealRow.MinParticipants
		if minParticipants <= 0 {
			minParticipants = s.cfg.MinParticipantsDefault
		}
		if progress.ParticipantsCount < minParticipants {
			return pkgerrors.New(pkgerrors.CodeMinParticipantsNotMet,
				fmt.Sprintf("group has %d participants, needs %d", progress.ParticipantsCount, minParticipants))
		}

		lockedAt := s.now()
		finalDiscount := progress.DiscountPercent
		momentumApplied := false
		if finalDiscount > 0 && s.withinMomentumWindow(dealRow.StartsAt, dealRow.EndsAt, lockedAt) {
			finalDiscount += s.cfg.MomentumBonusPoints
			if finalDiscount > 100 {
				finalDiscount = 100
			}
			momentumApplied = true
		}

		if err := groups.MarkLocked(ctx, groupRow.ID, progress, finalDiscount, lockedAt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark locked")
		}
		if err := settlements.Insert(ctx, &models.Settlement{
			ID:                   uuid.New(),
			GroupID:              groupRow.ID,
			FinalTierRank:        progress.TierRank,
			FinalDiscountPercent: finalDiscount,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert settlement")
		}

		issued := make([]models.Redemption, 0, len(rows))
		for _, member := range rows {
			redemption, err := BuildRedemption(groupRow.ID, member.Wallet, finalDiscount, dealRow.MerchantID, lockedAt)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build redemption")
			}
			issued = append(issued, redemption)
		}
		if err := redemptions.InsertBatch(ctx, issued); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert redemptions")
		}

		for _, member := range rows {
			if err := s.notify(ctx, tx, models.Notification{
				Wallet:  member.Wallet,
				Type:    enums.NotificationTypeGroupLocked,
				Title:   "Group locked in",
				Message: fmt.Sprintf("Your group locked %s at %d%% off. Your redemption code is ready.", dealRow.Title, finalDiscount),
			}); err != nil {
				return err
			}
		}
		if err := s.recordActivity(ctx, tx, models.ActivityEvent{
			GroupID: groupRow.ID,
			Wallet:  actorWallet,
			Type:    enums.ActivityGroupLocked,
		}); err != nil {
			return err
		}
		for _, redemption := range issued {
			if err := s.recordActivity(ctx, tx, models.ActivityEvent{
				GroupID: groupRow.ID,
				Wallet:  redemption.Wallet,
				Type:    enums.ActivityRedemptionIssued,
			}); err != nil {
				return err
			}
		}

		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGroupLocked,
			AggregateType: enums.AggregateGroup,
			AggregateID:   groupRow.ID,
			Actor:         lockActor(actorWallet),
			Data: payloads.GroupLockedEvent{
				GroupID:              groupRow.ID,
				DealID:               dealRow.ID,
				FinalTierRank:        optionalRank(progress.TierRank),
				FinalDiscountPercent: decimal.NewFromInt(int64(finalDiscount)),
				ParticipantsCount:    progress.ParticipantsCount,
				TotalPledged:         progress.TotalPledged,
				MomentumBonusApplied: momentumApplied,
				LockedAt:             lockedAt,
			},
			Version:    1,
			OccurredAt: lockedAt,
		}); err != nil {
			return err
		}

		dtos := make([]RedemptionDTO, 0, len(issued))
		for i := range issued {
			dtos = append(dtos, *NewRedemptionDTO(&issued[i]))
		}
		result = &SettlementDTO{
			GroupID:              groupRow.ID,
			FinalTierRank:        progress.TierRank,
			FinalDiscountPercent: finalDiscount,
			ParticipantsCount:    progress.ParticipantsCount,
			TotalPledged:         progress.TotalPledged,
			MomentumBonusApplied: momentumApplied,
			LockedAt:             lockedAt,
			Redemptions:          dtos,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) CancelGroup(ctx context.Context, id uuid.UUID, input CancelGroupInput) (*GroupDTO, error) {
	now := s.now()
	var cancelled *models.Group
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		groups := s.groups.WithTx(tx)
		members := s.members.WithTx(tx)

		groupRow, err := groups.FindForUpdate(ctx, id, s.cfg.LockWaitTimeout)
		if err != nil {
			if dbpkg.IsLockNotAvailable(err) {
				return pkgerrors.Wrap(pkgerrors.CodeLockTimeout, err, "group row busy")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load group")
		}
		if groupRow == nil {
			return pkgerrors.New(pkgerrors.CodeGroupNotFound, "group not found")
		}
		if input.ActorWallet != "" && input.ActorWallet != groupRow.HostWallet {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the host can cancel the group")
		}
		switch groupRow.Status {
		case enums.GroupStatusCancelled:
			cancelled = groupRow
			return nil
		case enums.GroupStatusLocked, enums.GroupStatusExpired:
			return pkgerrors.New(pkgerrors.CodeInvalidStateTransition,
				fmt.Sprintf("cannot cancel a %s group", groupRow.Status))
		}

		if err := groups.MarkCancelled(ctx, groupRow.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark cancelled")
		}
		groupRow.Status = enums.GroupStatusCancelled
		groupRow.CancelledAt = &now
		cancelled = groupRow

		rows, err := members.ListActiveByGroup(ctx, groupRow.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load members")
		}
		for _, member := range rows {
			if err := s.notify(ctx, tx, models.Notification{
				Wallet:  member.Wallet,
				Type:    enums.NotificationTypeGroupCancelled,
				Title:   "Group cancelled",
				Message: "A group you joined was cancelled before locking in.",
			}); err != nil {
				return err
			}
		}
		if err := s.recordActivity(ctx, tx, models.ActivityEvent{
			GroupID: groupRow.ID,
			Wallet:  input.ActorWallet,
			Type:    enums.ActivityGroupCancelled,
		}); err != nil {
			return err
		}

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGroupCancelled,
			AggregateType: enums.AggregateGroup,
			AggregateID:   groupRow.ID,
			Actor:         lockActor(input.ActorWallet),
			Data: payloads.GroupCancelledEvent{
				GroupID:     groupRow.ID,
				DealID:      groupRow.DealID,
				Reason:      input.Reason,
				CancelledAt: now,
			},
			Version:    1,
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return NewGroupDTO(cancelled), nil
}

func (s *service) ExpireGroup(ctx context.Context, id uuid.UUID) (*GroupDTO, error) {
	now := s.now()
	var expired *models.Group
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		groups := s.groups.WithTx(tx)
		members := s.members.WithTx(tx)
		deals := s.deals.WithTx(tx)

		groupRow, err := groups.FindForUpdate(ctx, id, s.cfg.LockWaitTimeout)
		if err != nil {
			if dbpkg.IsLockNotAvailable(err) {
				return pkgerrors.Wrap(pkgerrors.CodeLockTimeout, err, "group row busy")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load group")
		}
		if groupRow == nil {
			return pkgerrors.New(pkgerrors.CodeGroupNotFound, "group not found")
		}
		// Sweeps race each other and raced locks; terminal states are a no-op
		// so retries stay idempotent.
		if groupRow.Status.IsTerminal() {
			expired = groupRow
			return nil
		}
		if now.Before(groupRow.ExpiresAt) {
			return pkgerrors.New(pkgerrors.CodeInvalidStateTransition, "group has not reached its expiry")
		}

		dealRow, err := deals.FindByID(ctx, groupRow.DealID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load deal")
		}
		if dealRow == nil {
			return pkgerrors.New(pkgerrors.CodeDealNotFound, "deal not found")
		}
		rows, err := members.ListActiveByGroup(ctx, groupRow.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load members")
		}

		// Expiry only forfeits groups that never reached the minimum. A
		// filled group past its deadline must settle through the lock
		// protocol so members keep their discount.
		minParticipants := dealRow.MinParticipants
		if minParticipants <= 0 {
			minParticipants = s.cfg.MinParticipantsDefault
		}
		if len(rows) >= minParticipants {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("group has %d participants and met its minimum of %d, lock it instead", len(rows), minParticipants))
		}

		if err := groups.MarkExpired(ctx, groupRow.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark expired")
		}
		groupRow.Status = enums.GroupStatusExpired
		groupRow.ExpiredAt = &now
		expired = groupRow
		for _, member := range rows {
			if err := s.notify(ctx, tx, models.Notification{
				Wallet:  member.Wallet,
				Type:    enums.NotificationTypeGroupExpired,
				Title:   "Group expired",
				Message: "A group you joined expired before locking in.",
			}); err != nil {
				return err
			}
		}
		if err := s.recordActivity(ctx, tx, models.ActivityEvent{
			GroupID: groupRow.ID,
			Wallet:  groupRow.HostWallet,
			Type:    enums.ActivityGroupExpired,
		}); err != nil {
			return err
		}

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGroupExpired,
			AggregateType: enums.AggregateGroup,
			AggregateID:   groupRow.ID,
			Actor:         &outbox.ActorRef{System: "sweep-worker"},
			Data: payloads.GroupExpiredEvent{
				GroupID:           groupRow.ID,
				DealID:            groupRow.DealID,
				ParticipantsCount: len(rows),
				ExpiredAt:         now,
			},
			Version:    1,
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return NewGroupDTO(expired), nil
}

func (s *service) RecomputeProgress(ctx context.Context, id uuid.UUID) (*Progress, error) {
	var progress Progress
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		groups := s.groups.WithTx(tx)
		members := s.members.WithTx(tx)
		deals := s.deals.WithTx(tx)

		groupRow, err := groups.FindForUpdate(ctx, id, s.cfg.LockWaitTimeout)
		if err != nil {
			if dbpkg.IsLockNotAvailable(err) {
				return pkgerrors.Wrap(pkgerrors.CodeLockTimeout, err, "group row busy")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load group")
		}
		if groupRow == nil {
			return pkgerrors.New(pkgerrors.CodeGroupNotFound, "group not found")
		}

		dealRow, err := deals.FindByID(ctx, groupRow.DealID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load deal")
		}
		if dealRow == nil {
			return pkgerrors.New(pkgerrors.CodeDealNotFound, "deal not found")
		}
		rows, err := members.ListActiveByGroup(ctx, groupRow.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load members")
		}
		progress = ComputeProgress(dealRow.Tiers, dealRow.TierMode, rows)

		// Terminal groups keep their settled snapshot; recompute is then a
		// read-only check.
		if groupRow.Status != enums.GroupStatusForming {
			return nil
		}
		return groups.UpdateDerived(ctx, groupRow.ID, progress)
	})
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func (s *service) ListGroupsByDeal(ctx context.Context, dealID uuid.UUID, params pagination.Params) (*GroupListResult, error) {
	rows, next, err := s.groups.ListByDeal(ctx, dealID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list groups")
	}
	return newGroupListResult(rows, next), nil
}

func (s *service) ListGroupsByWallet(ctx context.Context, wallet string, params pagination.Params) (*GroupListResult, error) {
	if wallet == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet is required")
	}
	rows, next, err := s.groups.ListByWallet(ctx, wallet, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list groups")
	}
	return newGroupListResult(rows, next), nil
}

func (s *service) GetRedemption(ctx context.Context, code string) (*RedemptionDTO, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	redemption, err := s.redemptions.FindByCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load redemption")
	}
	if redemption == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "redemption not found")
	}
	return NewRedemptionDTO(redemption), nil
}

func (s *service) RedeemCode(ctx context.Context, code string, actorWallet string) (*RedemptionDTO, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}

	now := s.now()
	var redeemed *models.Redemption
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		redemptions := s.redemptions.WithTx(tx)

		redemption, err := redemptions.FindByCode(ctx, code)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load redemption")
		}
		if redemption == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "redemption not found")
		}
		ok, err := redemptions.MarkRedeemed(ctx, code, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark redeemed")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "code already redeemed")
		}
		redemption.Status = enums.RedemptionStatusRedeemed
		redemption.RedeemedAt = &now
		redeemed = redemption

		if err := s.recordActivity(ctx, tx, models.ActivityEvent{
			GroupID: redemption.GroupID,
			Wallet:  redemption.Wallet,
			Type:    enums.ActivityCodeRedeemed,
		}); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCodeRedeemed,
			AggregateType: enums.AggregateRedemption,
			AggregateID:   redemption.ID,
			Actor:         lockActor(actorWallet),
			Data: payloads.CodeRedeemedEvent{
				RedemptionID: redemption.ID,
				GroupID:      redemption.GroupID,
				Wallet:       redemption.Wallet,
				Code:         redemption.Code,
				RedeemedAt:   now,
			},
			Version:    1,
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return NewRedemptionDTO(redeemed), nil
}

func (s *service) ListRedemptionsByWallet(ctx context.Context, wallet string) ([]RedemptionDTO, error) {
	if wallet == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet is required")
	}
	rows, err := s.redemptions.ListByWallet(ctx, wallet)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list redemptions")
	}
	out := make([]RedemptionDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewRedemptionDTO(&rows[i]))
	}
	return out, nil
}

// withinMomentumWindow reports whether lockedAt falls inside the early slice
// of the deal window that earns the momentum bonus.
func (s *service) withinMomentumWindow(startsAt, endsAt, lockedAt time.Time) bool {
	window := endsAt.Sub(startsAt)
	if window <= 0 || s.cfg.MomentumWindowRatio <= 0 {
		return false
	}
	elapsed := lockedAt.Sub(startsAt)
	if elapsed < 0 {
		return false
	}
	return float64(elapsed) <= float64(window)*s.cfg.MomentumWindowRatio
}

func (s *service) notify(ctx context.Context, tx *gorm.DB, notification models.Notification) error {
	if s.notifier == nil {
		return nil
	}
	if err := s.notifier.CreateTx(ctx, tx, notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write notification")
	}
	return nil
}

func (s *service) recordActivity(ctx context.Context, tx *gorm.DB, event models.ActivityEvent) error {
	if s.activity == nil {
		return nil
	}
	if err := s.activity.RecordTx(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record activity")
	}
	return nil
}

func normalizePledge(mode enums.TierMode, pledge decimal.Decimal) (decimal.Decimal, error) {
	if pledge.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeInvalidPledge, "pledge must be positive")
	}
	if mode == enums.TierModeByVolume {
		if pledge.IsZero() {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeInvalidPledge, "volume deals require a positive pledge")
		}
		return pledge, nil
	}
	// Count deals ignore the pledge amount; every member weighs one unit.
	return decimal.NewFromInt(1), nil
}

// nextTier returns the lowest unreached rung and how much progress remains to
// reach it.
func nextTier(tiers []models.DealTier, mode enums.TierMode, groupRow *models.Group) (int, decimal.Decimal, bool) {
	current := decimal.NewFromInt(int64(groupRow.ParticipantsCount))
	if mode == enums.TierModeByVolume {
		current = groupRow.TotalPledged
	}
	bestRank := 0
	remaining := decimal.Zero
	for _, tier := range tiers {
		if tier.Rank <= groupRow.CurrentTierRank {
			continue
		}
		if bestRank == 0 || tier.Rank < bestRank {
			bestRank = tier.Rank
			remaining = tier.Threshold.Sub(current)
		}
	}
	if bestRank == 0 {
		return 0, decimal.Zero, false
	}
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return bestRank, remaining, true
}

func newGroupListResult(rows []models.Group, next *pagination.Cursor) *GroupListResult {
	result := &GroupListResult{Groups: make([]GroupDTO, 0, len(rows))}
	for i := range rows {
		result.Groups = append(result.Groups, *NewGroupDTO(&rows[i]))
	}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result
}

func optionalRank(rank int) *int {
	if rank <= 0 {
		return nil
	}
	return &rank
}

func lockActor(wallet string) *outbox.ActorRef {
	if wallet == "" {
		return &outbox.ActorRef{System: "api"}
	}
	return &outbox.ActorRef{Wallet: wallet}
}

func lockOutcome(err error) string {
	if err == nil {
		return metrics.LockOutcomeSettled
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return metrics.LockOutcomeError
	}
	switch typed.Code() {
	case pkgerrors.CodeAlreadyLocked:
		return metrics.LockOutcomeAlreadyLocked
	case pkgerrors.CodeMinParticipantsNotMet:
		return metrics.LockOutcomeBelowMinimum
	case pkgerrors.CodeLockTimeout:
		return metrics.LockOutcomeTimeout
	default:
		return metrics.LockOutcomeError
	}
}
