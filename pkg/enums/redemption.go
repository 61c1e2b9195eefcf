package enums

import "fmt"

// RedemptionStatus maps to the redemption_status enum in Postgres.
type RedemptionStatus string

const (
	RedemptionStatusIssued   RedemptionStatus = "issued"
	RedemptionStatusRedeemed RedemptionStatus = "redeemed"
)

var validRedemptionStatuses = []RedemptionStatus{
	RedemptionStatusIssued,
	RedemptionStatusRedeemed,
}

// String implements fmt.Stringer.
func (r RedemptionStatus) String() string {
	return string(r)
}

// IsValid reports whether the value matches the canonical enum.
func (r RedemptionStatus) IsValid() bool {
	for _, candidate := range validRedemptionStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRedemptionStatus converts raw input into a RedemptionStatus.
func ParseRedemptionStatus(value string) (RedemptionStatus, error) {
	for _, candidate := range validRedemptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid redemption status %q", value)
}
