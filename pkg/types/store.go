package types

import (
	"context"
	"errors"
)

// Snapshot is what a Store persists in one atomic write: the ledger state
// (nil before initialization) and the host account balances, including the
// custody account.
type Snapshot struct {
	State    *State
	Balances map[Identity]Amount

	// Generation identifies the saved snapshot this one was loaded from or
	// derived from. Stores that do not implement Versioned leave it zero.
	Generation uint64
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	c := Snapshot{
		State:      s.State.Clone(),
		Balances:   make(map[Identity]Amount, len(s.Balances)),
		Generation: s.Generation,
	}
	for k, v := range s.Balances {
		c.Balances[k] = v
	}
	return c
}

// Store persists the ledger world. Implementations must make Save atomic: a
// failed Save leaves the previously saved snapshot intact.
type Store interface {
	// Attach connects the store to the backend described by config.
	// Returns ErrAlreadyAttached if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent.
	Detach() error

	// Load returns the last saved snapshot. A store that has never been
	// saved returns an empty snapshot with a nil State.
	Load(ctx context.Context) (Snapshot, error)

	// Save replaces the stored snapshot and appends events to the event log.
	Save(ctx context.Context, snap Snapshot, events []Event) error

	// Events returns the event log in append order.
	Events(ctx context.Context) ([]Event, error)
}

// Versioned is implemented by stores that several processes may write.
// Saving a snapshot of generation g stores generation g+1, and fails with
// ErrStaleSnapshot when the stored generation is no longer g. Load returns
// the stored generation in Snapshot.Generation.
type Versioned interface {
	// Generation returns the generation currently stored, which may be newer
	// than the last one this store loaded.
	Generation(ctx context.Context) (uint64, error)
}

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
	ErrStaleSnapshot   = errors.New("store was written since the snapshot was loaded")
)
