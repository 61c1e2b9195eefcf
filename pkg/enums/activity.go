package enums

import "fmt"

// ActivityEventType maps to the activity_event_type enum in Postgres.
type ActivityEventType string

const (
	ActivityGroupCreated     ActivityEventType = "group_created"
	ActivityMemberJoined     ActivityEventType = "member_joined"
	ActivityGroupLocked      ActivityEventType = "group_locked"
	ActivityGroupCancelled   ActivityEventType = "group_cancelled"
	ActivityGroupExpired     ActivityEventType = "group_expired"
	ActivityRedemptionIssued ActivityEventType = "redemption_issued"
	ActivityCodeRedeemed     ActivityEventType = "code_redeemed"
)

var validActivityEventTypes = []ActivityEventType{
	ActivityGroupCreated,
	ActivityMemberJoined,
	ActivityGroupLocked,
	ActivityGroupCancelled,
	ActivityGroupExpired,
	ActivityRedemptionIssued,
	ActivityCodeRedeemed,
}

// IsValid reports whether the value matches the canonical enum.
func (a ActivityEventType) IsValid() bool {
	for _, candidate := range validActivityEventTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActivityEventType converts raw input into an ActivityEventType.
func ParseActivityEventType(value string) (ActivityEventType, error) {
	for _, candidate := range validActivityEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid activity event type %q", value)
}
