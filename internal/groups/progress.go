package group

import (
	"github.com/shopspring/decimal"

	deal "github.com/monkelabs/monke-backend/internal/deals"
	"github.com/monkelabs/monke-backend/pkg/db/models"
	"github.com/monkelabs/monke-backend/pkg/enums"
)

// Progress is the derived snapshot the aggregator computes from member rows.
type Progress struct {
	ParticipantsCount int             `json:"participants_count"`
	TotalPledged      decimal.Decimal `json:"total_pledged"`
	TierRank          int             `json:"tier_rank"`
	DiscountPercent   int             `json:"discount_percent"`
}

// ComputeProgress derives the snapshot from the given member rows: count of
// non-withdrawn rows, sum of pledge units (absent pledges count as 1), and the
// tier resolved for the deal's mode. Pure and idempotent; persisting the
// result is the caller's job.
func ComputeProgress(tiers []models.DealTier, mode enums.TierMode, members []models.GroupMember) Progress {
	participants := 0
	total := decimal.Zero
	for _, member := range members {
		if !member.Status.CountsTowardProgress() {
			continue
		}
		participants++
		pledge := member.PledgeUnits
		// Count deals weigh every member as one unit regardless of the
		// stored pledge.
		if mode == enums.TierModeByCount || pledge.IsZero() {
			pledge = decimal.NewFromInt(1)
		}
		total = total.Add(pledge)
	}

	resolution := deal.ResolveTier(tiers, mode, participants, total)
	return Progress{
		ParticipantsCount: participants,
		TotalPledged:      total,
		TierRank:          resolution.Rank,
		DiscountPercent:   resolution.DiscountPercent,
	}
}

// applyProgress copies the derived snapshot onto the in-memory group row so
// callers holding it see the freshly computed values.
func applyProgress(group *models.Group, progress Progress) {
	group.ParticipantsCount = progress.ParticipantsCount
	group.TotalPledged = progress.TotalPledged
	group.CurrentTierRank = progress.TierRank
	group.CurrentDiscountPercent = progress.DiscountPercent
}
