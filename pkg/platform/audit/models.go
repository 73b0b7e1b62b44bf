package audit

import (
	"encoding/json"
	"errors"
	"time"
)

// Category classifies audit entries by their primary purpose. It selects the
// outbox topic an entry is relayed to and never changes after append.
type Category string

const (
	// CategoryCompliance covers decisions with approval-chain significance
	// (approval requested, granted or denied).
	CategoryCompliance Category = "compliance"

	// CategorySecurity covers actions taken on behalf of a request's role,
	// such as role simulation.
	CategorySecurity Category = "security"

	// CategoryOperations covers routine planning activity: forecast runs and
	// replenishment drafts.
	CategoryOperations Category = "operations"
)

// ActorSystem is the actor recorded for entries appended by the event bus.
const ActorSystem = "SYSTEM"

var (
	ErrMissingActor  = errors.New("audit entry requires an actor")
	ErrMissingAction = errors.New("audit entry requires an action")
)

// Entry is one immutable audit record. ID is assigned by the store on append
// and is zero on entries that have not been persisted yet.
type Entry struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Actor     string          `json:"actor"`
	Action    string          `json:"action"`
	Category  Category        `json:"category"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Reason    *string         `json:"reason,omitempty"`
}

// Validate checks required fields before a store touches storage.
func (e Entry) Validate() error {
	if e.Actor == "" {
		return ErrMissingActor
	}
	if e.Action == "" {
		return ErrMissingAction
	}
	return nil
}

// Normalize fills defaults a store applies on append.
func (e Entry) Normalize(now time.Time) Entry {
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	e.Timestamp = e.Timestamp.UTC()
	if e.Category == "" {
		e.Category = CategoryOperations
	}
	if len(e.Payload) == 0 {
		e.Payload = json.RawMessage("{}")
	}
	return e
}
