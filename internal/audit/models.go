package audit

import (
	"time"

	id "tripmate/pkg/domain"
)

// Outcome classifies how an audited operation ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeDenied  Outcome = "denied"
	OutcomeFailed  Outcome = "failed"
)

// Event is emitted from domain logic to capture key trip actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	TripID    id.TripID `json:"tripId"`
	ActorID   id.UserID `json:"actorId"`
	Action    string    `json:"action"`
	Outcome   Outcome   `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
}
