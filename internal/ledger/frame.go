package ledger

import (
	"context"
	"errors"

	"github.com/mesh-intelligence/cofund/internal/host"
	"github.com/mesh-intelligence/cofund/pkg/types"
)

// maxCallDepth bounds reentrant calls made by receivers.
const maxCallDepth = 8

// ErrCallDepth is returned when receivers re-enter the ledger more than
// maxCallDepth times within one call.
var ErrCallDepth = errors.New("reentrant call depth exceeded")

// world is everything a call may mutate.
type world struct {
	state    *types.State
	accounts *host.Accounts
	custody  types.Identity
}

func (w *world) clone() *world {
	return &world{
		state:    w.state.Clone(),
		accounts: w.accounts.Clone(),
		custody:  w.custody,
	}
}

// initialized returns the state or a NotInitialized rejection for op.
func (w *world) initialized(op string) (*types.State, error) {
	if w.state == nil {
		return nil, &types.LedgerError{Op: op, Kind: types.ErrNotInitialized}
	}
	return w.state, nil
}

// custodyBalance is the host balance of the custody account.
func (w *world) custodyBalance() types.Amount {
	return w.accounts.Balance(w.custody)
}

// frame is one serialized call and every reentrant call nested in it.
type frame struct {
	engine *Engine
	w      *world
	events []types.Event
	depth  int

	// authorized is the logic reference an upgrade was authorized for during
	// this call. It is never persisted.
	authorized string
}

// restore rolls the frame's world back to saved in place, so state pointers
// held by outer callers stay valid.
func (f *frame) restore(saved *world) {
	switch {
	case saved.state == nil:
		f.w.state = nil
	case f.w.state == nil:
		f.w.state = saved.state
	default:
		*f.w.state = *saved.state
	}
	*f.w.accounts = *saved.accounts
}

// revision returns the tag of the state the frame is operating on.
func (f *frame) revision() types.Revision {
	if f.w.state == nil {
		return types.RevisionNone
	}
	return f.w.state.Revision
}

// active resolves the operation set for the current revision tag.
func (f *frame) active(op string) (revision, error) {
	st, err := f.w.initialized(op)
	if err != nil {
		return nil, err
	}
	rev, ok := revisions[st.Revision]
	if !ok {
		return nil, &types.LedgerError{Op: op, Kind: types.ErrCorruptState, Revision: st.Revision}
	}
	return rev, nil
}

// reject builds a ledger error for op, stamped with the current revision.
func (f *frame) reject(op string, kind error, caller types.Identity) *types.LedgerError {
	return &types.LedgerError{Op: op, Kind: kind, Caller: caller, Revision: f.revision()}
}

// emit buffers an event. Buffered events are dropped if the frame, or the
// nested call that produced them, rolls back.
func (f *frame) emit(e types.Event) {
	e.EventID = f.engine.newID()
	e.CreatedAt = f.engine.now()
	e.Revision = f.revision()
	f.events = append(f.events, e)
}

// transfer sends amount from custody to to, then runs the recipient's
// receiver. Callers must apply their own effects before calling transfer.
// Any error means the transfer did not happen; the enclosing call must fail
// so the debit is rolled back with it.
func (f *frame) transfer(ctx context.Context, to types.Identity, amount types.Amount) error {
	if err := f.w.accounts.Transfer(f.w.custody, to, amount); err != nil {
		return err
	}
	r := f.engine.receiver(to)
	if r == nil {
		return nil
	}
	return r.OnReceive(ctx, f.w.custody, amount, api{r: &callView{f: f}})
}
