package deal

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/monkelabs/monke-backend/pkg/db/models"
	"github.com/monkelabs/monke-backend/pkg/enums"
)

// TierResolution is the outcome of running a progress value against a deal's
// tier ladder. Rank 0 / 0% means no tier threshold was met.
type TierResolution struct {
	Rank            int
	DiscountPercent int
}

// ResolveTier returns the highest tier whose threshold the progress value
// meets. Thresholds are compared with >=; when two tiers share a threshold the
// higher rank wins. Pure, no side effects.
func ResolveTier(tiers []models.DealTier, mode enums.TierMode, participants int, totalPledged decimal.Decimal) TierResolution {
	progress := totalPledged
	if mode == enums.TierModeByCount {
		progress = decimal.NewFromInt(int64(participants))
	}

	ordered := make([]models.DealTier, len(tiers))
	copy(ordered, tiers)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Rank < ordered[j].Rank })

	resolution := TierResolution{}
	for _, tier := range ordered {
		if progress.GreaterThanOrEqual(tier.Threshold) {
			resolution.Rank = tier.Rank
			resolution.DiscountPercent = tier.DiscountPercent
		}
	}
	return resolution
}
