// Package memstore provides an in-memory types.Store. It backs the "memory"
// backend and the ledger tests; nothing survives Detach.
package memstore

import (
	"context"
	"sync"

	"github.com/mesh-intelligence/cofund/pkg/types"
)

// Store keeps the saved snapshot and event log in memory.
type Store struct {
	mu       sync.RWMutex
	attached bool
	snap     types.Snapshot
	events   []types.Event

	// failSave, when set, makes Save fail with the returned error. Tests use
	// it to exercise commit failures.
	failSave func() error
}

var _ types.Store = (*Store)(nil)

// New returns an attached, empty store.
func New() *Store {
	return &Store{attached: true}
}

// Attach marks the store attached. The config is validated but otherwise
// ignored.
func (s *Store) Attach(config types.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	s.attached = true
	return nil
}

// Detach discards everything. Idempotent.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attached = false
	s.snap = types.Snapshot{}
	s.events = nil
	return nil
}

// Load returns a copy of the saved snapshot.
func (s *Store) Load(ctx context.Context) (types.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return types.Snapshot{}, types.ErrStoreDetached
	}
	return s.snap.Clone(), nil
}

// Save replaces the snapshot with a copy of snap and appends events.
func (s *Store) Save(ctx context.Context, snap types.Snapshot, events []types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return types.ErrStoreDetached
	}
	if s.failSave != nil {
		if err := s.failSave(); err != nil {
			return err
		}
	}
	s.snap = snap.Clone()
	s.events = append(s.events, events...)
	return nil
}

// Events returns a copy of the event log.
func (s *Store) Events(ctx context.Context) ([]types.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	return append([]types.Event(nil), s.events...), nil
}

// FailSaves makes every later Save return err until called again with nil.
func (s *Store) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		s.failSave = nil
		return
	}
	s.failSave = func() error { return err }
}
