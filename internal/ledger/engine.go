package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/cofund/internal/host"
	"github.com/mesh-intelligence/cofund/pkg/types"
)

// Engine runs ledger calls one at a time against the committed world and
// persists every successful call through a Store. It implements types.Ledger.
type Engine struct {
	api

	mu        sync.Mutex
	store     types.Store
	committed *world
	gen       uint64

	sink types.EventSink
	log  zerolog.Logger
	now  func() time.Time

	rmu       sync.RWMutex
	receivers map[types.Identity]types.Receiver
}

var _ types.Ledger = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithSink sets the notification sink. The default discards events.
func WithSink(s types.EventSink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithLogger sets the engine logger. The default is zerolog.Nop.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCustodyAccount sets the host account that holds custody. The default is
// host.DefaultCustodyAccount.
func WithCustodyAccount(id types.Identity) Option {
	return func(e *Engine) { e.committed.custody = id }
}

// Open loads the last saved snapshot from store and returns an engine over
// it. The store must already be attached. A stored state that fails
// validation is rejected with ErrCorruptState.
func Open(ctx context.Context, store types.Store, opts ...Option) (*Engine, error) {
	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	e := &Engine{
		store: store,
		committed: &world{
			state:    snap.State,
			accounts: host.FromBalances(snap.Balances),
			custody:  host.DefaultCustodyAccount,
		},
		gen:       snap.Generation,
		sink:      types.EventSinkFunc(func(types.Event) {}),
		log:       zerolog.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
		receivers: make(map[types.Identity]types.Receiver),
	}
	e.api = api{r: e}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.committed.custody.Validate(); err != nil {
		return nil, fmt.Errorf("custody account: %w", err)
	}
	if err := validateSnapshot(snap); err != nil {
		return nil, err
	}

	e.log.Debug().
		Str("custody", e.committed.custody.String()).
		Int("revision", int(e.committed.revisionTag())).
		Msg("ledger opened")
	return e, nil
}

// validateSnapshot rejects a stored state that fails validation or whose
// logic reference does not serve its revision.
func validateSnapshot(snap types.Snapshot) error {
	st := snap.State
	if st == nil {
		return nil
	}
	if err := st.Validate(); err != nil {
		return err
	}
	rev, ok := logics[st.Logic]
	if !ok || rev.tag() != st.Revision {
		return fmt.Errorf("%w: logic %q does not serve revision %d", types.ErrCorruptState, st.Logic, st.Revision)
	}
	return nil
}

// refresh reloads the committed world when the store holds a generation
// this engine neither loaded nor saved, which happens when another process
// writes the same data directory. The caller holds e.mu.
func (e *Engine) refresh(ctx context.Context) error {
	v, ok := e.store.(types.Versioned)
	if !ok {
		return nil
	}
	gen, err := v.Generation(ctx)
	if err != nil {
		return fmt.Errorf("checking store generation: %w", err)
	}
	if gen == e.gen {
		return nil
	}

	snap, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("reloading snapshot: %w", err)
	}
	if err := validateSnapshot(snap); err != nil {
		return err
	}
	e.log.Debug().
		Uint64("from", e.gen).
		Uint64("to", snap.Generation).
		Msg("reloaded snapshot written elsewhere")
	e.committed = &world{
		state:    snap.State,
		accounts: host.FromBalances(snap.Balances),
		custody:  e.committed.custody,
	}
	e.gen = snap.Generation
	return nil
}

// Custody returns the identity of the custody account.
func (e *Engine) Custody() types.Identity {
	return e.committed.custody
}

// RegisterReceiver installs r as the logic that runs when value is
// transferred to id. Receivers must call back only through the Ledger they
// are handed; calling the Engine directly from a receiver deadlocks.
func (e *Engine) RegisterReceiver(id types.Identity, r types.Receiver) {
	e.rmu.Lock()
	defer e.rmu.Unlock()
	e.receivers[id] = r
}

// UnregisterReceiver removes the receiver for id.
func (e *Engine) UnregisterReceiver(id types.Identity) {
	e.rmu.Lock()
	defer e.rmu.Unlock()
	delete(e.receivers, id)
}

func (e *Engine) receiver(id types.Identity) types.Receiver {
	e.rmu.RLock()
	defer e.rmu.RUnlock()
	return e.receivers[id]
}

// Credit adds amount to a host account. It is the development faucet; it
// works before the ledger is initialized.
func (e *Engine) Credit(ctx context.Context, id types.Identity, amount types.Amount) error {
	return e.call(ctx, opCredit, func(f *frame) error {
		if id == f.w.custody {
			return f.reject(opCredit, types.ErrInvalidIdentity, id)
		}
		return f.w.accounts.Credit(id, amount)
	})
}

// AccountBalance returns the host balance of any identity.
func (e *Engine) AccountBalance(ctx context.Context, id types.Identity) (types.Amount, error) {
	var bal types.Amount
	err := e.read(ctx, func(w *world) error {
		bal = w.accounts.Balance(id)
		return nil
	})
	return bal, err
}

// Accounts returns every non-zero host balance.
func (e *Engine) Accounts(ctx context.Context) (map[types.Identity]types.Amount, error) {
	var out map[types.Identity]types.Amount
	err := e.read(ctx, func(w *world) error {
		out = w.accounts.Balances()
		return nil
	})
	return out, err
}

// call runs fn as one serialized, all-or-nothing call.
func (e *Engine) call(ctx context.Context, op string, fn func(f *frame) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.refresh(ctx); err != nil {
		return err
	}
	f := &frame{engine: e, w: e.committed.clone()}
	if err := fn(f); err != nil {
		e.log.Debug().Str("op", op).Err(err).Msg("call rolled back")
		return err
	}

	snap := types.Snapshot{State: f.w.state, Balances: f.w.accounts.Balances(), Generation: e.gen}
	if err := e.store.Save(ctx, snap, f.events); err != nil {
		e.log.Error().Str("op", op).Err(err).Msg("commit failed")
		return fmt.Errorf("%s: committing: %w", op, err)
	}
	e.committed = f.w
	if _, ok := e.store.(types.Versioned); ok {
		e.gen++
	}

	e.log.Debug().Str("op", op).Int("events", len(f.events)).Msg("call committed")
	for _, ev := range f.events {
		e.sink.Emit(ev)
	}
	return nil
}

// read runs fn against the committed world, reloaded first if the store has
// moved on.
func (e *Engine) read(ctx context.Context, fn func(w *world) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.refresh(ctx); err != nil {
		return err
	}
	return fn(e.committed)
}

func (e *Engine) nested() bool { return false }

func (e *Engine) newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func (w *world) revisionTag() types.Revision {
	if w.state == nil {
		return types.RevisionNone
	}
	return w.state.Revision
}

// callView runs calls made by receivers inside the frame that invoked them.
type callView struct {
	f *frame
}

// call runs fn as a nested call: on error its effects and events are rolled
// back while the outer call continues and sees the error.
func (v *callView) call(ctx context.Context, op string, fn func(f *frame) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f := v.f
	if f.depth >= maxCallDepth {
		return fmt.Errorf("%s: %w", op, ErrCallDepth)
	}

	saved := f.w.clone()
	mark := len(f.events)
	authorized := f.authorized

	f.depth++
	err := fn(f)
	f.depth--

	if err != nil {
		f.restore(saved)
		f.events = f.events[:mark]
		f.authorized = authorized
		f.engine.log.Debug().Str("op", op).Int("depth", f.depth+1).Err(err).Msg("nested call rolled back")
	}
	return err
}

func (v *callView) nested() bool { return true }

func (v *callView) read(ctx context.Context, fn func(w *world) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(v.f.w)
}
