package enums

import "fmt"

// DealStatus maps to the deal_status enum in Postgres.
type DealStatus string

const (
	DealStatusActive DealStatus = "active"
	DealStatusClosed DealStatus = "closed"
)

var validDealStatuses = []DealStatus{
	DealStatusActive,
	DealStatusClosed,
}

// String implements fmt.Stringer.
func (d DealStatus) String() string {
	return string(d)
}

// IsValid reports whether the value matches the canonical enum.
func (d DealStatus) IsValid() bool {
	for _, candidate := range validDealStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDealStatus converts raw input into a DealStatus.
func ParseDealStatus(value string) (DealStatus, error) {
	for _, candidate := range validDealStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid deal status %q", value)
}

// TierMode selects how a deal's tier thresholds are measured.
type TierMode string

const (
	// TierModeByCount unlocks tiers by participant head count.
	TierModeByCount TierMode = "by_count"
	// TierModeByVolume unlocks tiers by total pledged volume.
	TierModeByVolume TierMode = "by_volume"
)

var validTierModes = []TierMode{
	TierModeByCount,
	TierModeByVolume,
}

// String implements fmt.Stringer.
func (t TierMode) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical enum.
func (t TierMode) IsValid() bool {
	for _, candidate := range validTierModes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTierMode converts raw input into a TierMode.
func ParseTierMode(value string) (TierMode, error) {
	for _, candidate := range validTierModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tier mode %q", value)
}
