package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateGroup      OutboxAggregateType = "group"
	AggregateDeal       OutboxAggregateType = "deal"
	AggregateRedemption OutboxAggregateType = "redemption"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateGroup,
	AggregateDeal,
	AggregateRedemption,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventGroupCreated   OutboxEventType = "group_created"
	EventGroupJoined    OutboxEventType = "group_joined"
	EventGroupLocked    OutboxEventType = "group_locked"
	EventGroupCancelled OutboxEventType = "group_cancelled"
	EventGroupExpired   OutboxEventType = "group_expired"
	EventCodeRedeemed   OutboxEventType = "code_redeemed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventGroupCreated,
	EventGroupJoined,
	EventGroupLocked,
	EventGroupCancelled,
	EventGroupExpired,
	EventCodeRedeemed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason maps to the outbox_dlq_error_reason enum in Postgres.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
)

var validOutboxDLQErrorReasons = []OutboxDLQErrorReason{
	OutboxDLQReasonNonRetryable,
	OutboxDLQReasonMaxAttempts,
}

// IsValid reports whether the value matches the canonical outbox_dlq_error_reason enum.
func (r OutboxDLQErrorReason) IsValid() bool {
	for _, candidate := range validOutboxDLQErrorReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseOutboxDLQErrorReason converts raw input into OutboxDLQErrorReason.
func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, error) {
	for _, candidate := range validOutboxDLQErrorReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dlq error reason %q", value)
}
