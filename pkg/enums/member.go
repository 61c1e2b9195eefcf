package enums

import "fmt"

// MemberStatus maps to the member_status enum in Postgres.
type MemberStatus string

const (
	MemberStatusPledged   MemberStatus = "pledged"
	MemberStatusConfirmed MemberStatus = "confirmed"
	MemberStatusWithdrawn MemberStatus = "withdrawn"
)

var validMemberStatuses = []MemberStatus{
	MemberStatusPledged,
	MemberStatusConfirmed,
	MemberStatusWithdrawn,
}

// String implements fmt.Stringer.
func (m MemberStatus) String() string {
	return string(m)
}

// IsValid reports whether the value matches the canonical enum.
func (m MemberStatus) IsValid() bool {
	for _, candidate := range validMemberStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// CountsTowardProgress reports whether the member contributes to group progress.
func (m MemberStatus) CountsTowardProgress() bool {
	return m == MemberStatusPledged || m == MemberStatusConfirmed
}

// ParseMemberStatus converts raw input into a MemberStatus.
func ParseMemberStatus(value string) (MemberStatus, error) {
	for _, candidate := range validMemberStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid member status %q", value)
}
