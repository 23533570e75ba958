package types

import "time"

// Event kinds.
const (
	EventInitialized       = "initialized"
	EventContributed       = "contributed"
	EventWithdrawn         = "withdrawn"
	EventRefunded          = "refunded"
	EventRefundsToggled    = "refunds_toggled"
	EventUpgradeAuthorized = "upgrade_authorized"
	EventMigrated          = "migrated"
)

// Event is a structured notification appended to the log sink after a call
// commits. Events of rolled-back calls are never emitted.
type Event struct {
	// EventID is a UUID v7, generated when the event is recorded.
	EventID string `json:"event_id"`

	// Kind is one of the Event* constants.
	Kind string `json:"kind"`

	// Who is the identity the event concerns (contributor, administrator).
	Who Identity `json:"who,omitempty"`

	// Amount is the value moved, for contributions, withdrawals and refunds.
	Amount Amount `json:"amount,omitempty"`

	// Enabled is the new toggle value for refunds_toggled.
	Enabled bool `json:"enabled,omitempty"`

	// Logic is the logic reference for upgrade_authorized and migrated.
	Logic string `json:"logic,omitempty"`

	// Revision is the revision that handled the call.
	Revision Revision `json:"revision"`

	// CreatedAt is the time the event was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// EventSink receives events off the call path. Sinks must not call back into
// the ledger.
type EventSink interface {
	Emit(e Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(e Event)

// Emit calls f.
func (f EventSinkFunc) Emit(e Event) { f(e) }
