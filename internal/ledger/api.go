package ledger

import (
	"context"
	"strconv"

	"github.com/mesh-intelligence/cofund/pkg/types"
)

// runner executes ledger calls. The Engine runs them as top-level serialized
// calls; a callView runs them nested inside the frame of an outbound
// transfer.
type runner interface {
	call(ctx context.Context, op string, fn func(f *frame) error) error
	read(ctx context.Context, fn func(w *world) error) error

	// nested reports whether calls run inside an in-flight call.
	nested() bool
}

// api implements types.Ledger over a runner by dispatching each entry point
// to the operation set of the current revision.
type api struct {
	r runner
}

var _ types.Ledger = api{}

func (a api) Initialize(ctx context.Context, caller types.Identity) error {
	return a.r.call(ctx, opInitialize, func(f *frame) error {
		return initialize(f, caller)
	})
}

func (a api) Contribute(ctx context.Context, caller types.Identity, value types.Amount) error {
	return a.r.call(ctx, opContribute, func(f *frame) error {
		rev, err := f.active(opContribute)
		if err != nil {
			return err
		}
		return rev.contribute(ctx, f, caller, value)
	})
}

func (a api) Withdraw(ctx context.Context, caller types.Identity) (types.Amount, error) {
	var amount types.Amount
	err := a.r.call(ctx, opWithdraw, func(f *frame) error {
		if _, err := f.active(opWithdraw); err != nil {
			return err
		}
		var err error
		amount, err = withdraw(ctx, f, caller)
		return err
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

func (a api) Refund(ctx context.Context, caller types.Identity) (types.Amount, error) {
	var amount types.Amount
	err := a.r.call(ctx, opRefund, func(f *frame) error {
		rev, err := f.active(opRefund)
		if err != nil {
			return err
		}
		amount, err = rev.refund(ctx, f, caller)
		return err
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

func (a api) ToggleRefunds(ctx context.Context, caller types.Identity) (bool, error) {
	var enabled bool
	err := a.r.call(ctx, opToggleRefunds, func(f *frame) error {
		rev, err := f.active(opToggleRefunds)
		if err != nil {
			return err
		}
		enabled, err = rev.toggleRefunds(f, caller)
		return err
	})
	if err != nil {
		return false, err
	}
	return enabled, nil
}

// AuthorizeUpgrade lasts only for the call it runs in. Called on its own it
// checks the caller and records nothing.
func (a api) AuthorizeUpgrade(ctx context.Context, caller types.Identity, logic string) error {
	if !a.r.nested() {
		return a.state(ctx, opAuthorizeUpgrade, func(_ *world, st *types.State) error {
			if caller != st.Administrator {
				return &types.LedgerError{Op: opAuthorizeUpgrade, Kind: types.ErrUnauthorized, Caller: caller, Revision: st.Revision}
			}
			return nil
		})
	}
	return a.r.call(ctx, opAuthorizeUpgrade, func(f *frame) error {
		return authorizeUpgrade(f, caller, logic)
	})
}

func (a api) MigrateToV2(ctx context.Context, caller types.Identity) error {
	return a.migrate(ctx, logics[types.LogicRefundableV2], caller)
}

func (a api) migrate(ctx context.Context, rev revision, caller types.Identity) error {
	return a.r.call(ctx, opMigrate, func(f *frame) error {
		return migrate(f, rev, caller)
	})
}

// state runs fn against the initialized state under a read.
func (a api) state(ctx context.Context, op string, fn func(w *world, st *types.State) error) error {
	return a.r.read(ctx, func(w *world) error {
		st, err := w.initialized(op)
		if err != nil {
			return err
		}
		return fn(w, st)
	})
}

func (a api) GoalMet(ctx context.Context) (bool, error) {
	var met bool
	err := a.state(ctx, "goal_met", func(_ *world, st *types.State) error {
		met = st.GoalMet()
		return nil
	})
	return met, err
}

func (a api) ContributorCount(ctx context.Context) (int, error) {
	var n int
	err := a.state(ctx, "contributor_count", func(_ *world, st *types.State) error {
		n = len(st.Contributors)
		return nil
	})
	return n, err
}

func (a api) Balance(ctx context.Context) (types.Amount, error) {
	var bal types.Amount
	err := a.state(ctx, "balance", func(w *world, _ *types.State) error {
		bal = w.custodyBalance()
		return nil
	})
	return bal, err
}

func (a api) Contributors(ctx context.Context) ([]types.Identity, error) {
	var ids []types.Identity
	err := a.state(ctx, "contributors", func(_ *world, st *types.State) error {
		ids = append([]types.Identity(nil), st.Contributors...)
		return nil
	})
	return ids, err
}

func (a api) HasContributed(ctx context.Context, id types.Identity) (bool, error) {
	var has bool
	err := a.state(ctx, "has_contributed", func(_ *world, st *types.State) error {
		has = st.HasContributed[id]
		return nil
	})
	return has, err
}

func (a api) Revision(ctx context.Context) (types.Revision, error) {
	var rev types.Revision
	err := a.state(ctx, "revision", func(_ *world, st *types.State) error {
		rev = st.Revision
		return nil
	})
	return rev, err
}

func (a api) MinimumFunding(ctx context.Context) (types.Amount, error) {
	var minimum types.Amount
	err := a.state(ctx, "minimum_funding", func(_ *world, st *types.State) error {
		minimum = revisions[st.Revision].minimumFunding()
		return nil
	})
	return minimum, err
}

func (a api) AmountFunded(ctx context.Context, id types.Identity) (types.Amount, error) {
	var amount types.Amount
	err := a.state(ctx, "amount_funded", func(_ *world, st *types.State) error {
		var err error
		amount, err = revisions[st.Revision].amountFunded(st, id)
		return err
	})
	return amount, err
}

func (a api) RefundsEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := a.state(ctx, "refunds_enabled", func(_ *world, st *types.State) error {
		var err error
		enabled, err = revisions[st.Revision].refundsEnabled(st)
		return err
	})
	return enabled, err
}

func (a api) Status(ctx context.Context) (types.Status, error) {
	var s types.Status
	err := a.state(ctx, "status", func(w *world, st *types.State) error {
		rev := revisions[st.Revision]
		s = types.Status{
			Administrator:    st.Administrator,
			Revision:         st.Revision,
			Logic:            st.Logic,
			ContributorCount: len(st.Contributors),
			FundingGoal:      types.FundingGoal,
			GoalMet:          st.GoalMet(),
			Balance:          w.custodyBalance(),
			MinimumFunding:   rev.minimumFunding(),
		}
		if enabled, err := rev.refundsEnabled(st); err == nil {
			s.RefundsEnabled = &enabled
		}
		return nil
	})
	return s, err
}

func (a api) Roster(ctx context.Context) ([]types.Contributor, error) {
	var out []types.Contributor
	err := a.state(ctx, "roster", func(_ *world, st *types.State) error {
		rev := revisions[st.Revision]
		out = make([]types.Contributor, 0, len(st.Contributors))
		for i, id := range st.Contributors {
			c := types.Contributor{Identity: id, Position: i}
			if amount, err := rev.amountFunded(st, id); err == nil {
				c.AmountFunded = &amount
			}
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

func itoa(n int) string { return strconv.Itoa(n) }
