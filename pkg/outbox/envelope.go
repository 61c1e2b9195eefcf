package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies who produced the event: a wallet for API-originated
// actions, a system name for sweep/worker-originated ones.
type ActorRef struct {
	Wallet string `json:"wallet,omitempty"`
	System string `json:"system,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
