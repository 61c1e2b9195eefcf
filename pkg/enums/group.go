package enums

import "fmt"

// GroupStatus maps to the group_status enum in Postgres.
type GroupStatus string

const (
	GroupStatusForming   GroupStatus = "forming"
	GroupStatusLocked    GroupStatus = "locked"
	GroupStatusCancelled GroupStatus = "cancelled"
	GroupStatusExpired   GroupStatus = "expired"
)

var validGroupStatuses = []GroupStatus{
	GroupStatusForming,
	GroupStatusLocked,
	GroupStatusCancelled,
	GroupStatusExpired,
}

// String implements fmt.Stringer.
func (g GroupStatus) String() string {
	return string(g)
}

// IsValid reports whether the value matches the canonical enum.
func (g GroupStatus) IsValid() bool {
	for _, candidate := range validGroupStatuses {
		if candidate == g {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed out of the status.
func (g GroupStatus) IsTerminal() bool {
	return g == GroupStatusLocked || g == GroupStatusCancelled || g == GroupStatusExpired
}

// ParseGroupStatus converts raw input into a GroupStatus.
func ParseGroupStatus(value string) (GroupStatus, error) {
	for _, candidate := range validGroupStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid group status %q", value)
}
