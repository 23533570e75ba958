package ledger

import (
	"context"
	"errors"

	"github.com/mesh-intelligence/cofund/pkg/types"
)

// Operation names used in errors, logs and commits.
const (
	opInitialize       = "initialize"
	opContribute       = "contribute"
	opWithdraw         = "withdraw"
	opRefund           = "refund"
	opToggleRefunds    = "toggle_refunds"
	opAuthorizeUpgrade = "authorize_upgrade"
	opMigrate          = "migrate"
	opUpgrade          = "upgrade"
	opCredit           = "credit"
)

// revision is the operation set of one logic revision. Operations that are
// identical across revisions (withdraw and the shared queries) live outside
// this interface and run against the shared state directly.
type revision interface {
	tag() types.Revision
	ref() string
	minimumFunding() types.Amount

	contribute(ctx context.Context, f *frame, caller types.Identity, value types.Amount) error
	refund(ctx context.Context, f *frame, caller types.Identity) (types.Amount, error)
	toggleRefunds(f *frame, caller types.Identity) (bool, error)
	amountFunded(st *types.State, id types.Identity) (types.Amount, error)
	refundsEnabled(st *types.State) (bool, error)

	// upgrade applies the revision's own migration effects. It runs only
	// after migrate has checked the one-shot guard and the authorization.
	upgrade(st *types.State)
}

// revisions is the dispatch table from revision tag to operation set.
var revisions = map[types.Revision]revision{
	types.Revision1: contributionLedger{},
	types.Revision2: refundableLedger{},
}

// logics resolves the logic references the upgrade controller may point at.
var logics = map[string]revision{
	types.LogicContributionV1: contributionLedger{},
	types.LogicRefundableV2:   refundableLedger{},
}

// initialize creates the state on first call.
func initialize(f *frame, caller types.Identity) error {
	if f.w.state != nil {
		return f.reject(opInitialize, types.ErrAlreadyInitialized, caller)
	}
	if err := caller.Validate(); err != nil || caller == f.w.custody {
		return f.reject(opInitialize, types.ErrInvalidIdentity, caller)
	}
	f.w.state = types.NewState(caller)
	f.emit(types.Event{Kind: types.EventInitialized, Who: caller, Logic: types.LogicContributionV1})
	return nil
}

// acceptContribution moves value into custody and records caller as a
// contributor. The value transfer and the bookkeeping commit together.
func acceptContribution(f *frame, caller types.Identity, value, minimum types.Amount) error {
	if err := caller.Validate(); err != nil || caller == f.w.custody {
		return f.reject(opContribute, types.ErrInvalidIdentity, caller)
	}
	if value < minimum {
		e := f.reject(opContribute, types.ErrBelowMinimum, caller)
		e.Have, e.Want = value.String(), minimum.String()
		return e
	}
	if err := f.w.accounts.Transfer(caller, f.w.custody, value); err != nil {
		if errors.Is(err, types.ErrInsufficientFunds) {
			e := f.reject(opContribute, types.ErrInsufficientFunds, caller)
			e.Err = err
			return e
		}
		return err
	}
	f.w.state.AddContributor(caller)
	return nil
}

// withdraw is shared by every revision: it sends the whole custody balance to
// the administrator once the goal is met.
func withdraw(ctx context.Context, f *frame, caller types.Identity) (types.Amount, error) {
	st := f.w.state
	if caller != st.Administrator {
		return 0, f.reject(opWithdraw, types.ErrUnauthorized, caller)
	}
	if !st.GoalMet() {
		e := f.reject(opWithdraw, types.ErrGoalNotMet, caller)
		e.Have, e.Want = itoa(len(st.Contributors)), itoa(types.FundingGoal)
		return 0, e
	}
	amount := f.w.custodyBalance()
	if amount == 0 {
		return 0, f.reject(opWithdraw, types.ErrNothingToWithdraw, caller)
	}

	admin := st.Administrator
	if err := f.transfer(ctx, admin, amount); err != nil {
		e := f.reject(opWithdraw, types.ErrTransferFailed, caller)
		e.Err = err
		return 0, e
	}
	f.emit(types.Event{Kind: types.EventWithdrawn, Who: admin, Amount: amount})
	return amount, nil
}

// authorizeUpgrade records, for this call only, that execution may be
// repointed at logic.
func authorizeUpgrade(f *frame, caller types.Identity, logic string) error {
	st, err := f.w.initialized(opAuthorizeUpgrade)
	if err != nil {
		return err
	}
	if caller != st.Administrator {
		return f.reject(opAuthorizeUpgrade, types.ErrUnauthorized, caller)
	}
	f.authorized = logic
	f.emit(types.Event{Kind: types.EventUpgradeAuthorized, Who: caller, Logic: logic})
	return nil
}

// migrate is the one-shot hook that moves the state to rev. It fails with
// AlreadyMigrated unless the state is exactly one revision behind rev, so a
// second attempt for the same target always fails. The authorization is
// consumed.
func migrate(f *frame, rev revision, caller types.Identity) error {
	st, err := f.w.initialized(opMigrate)
	if err != nil {
		return err
	}
	if st.Revision != rev.tag()-1 {
		e := f.reject(opMigrate, types.ErrAlreadyMigrated, caller)
		e.Have, e.Want = itoa(int(st.Revision)), itoa(int(rev.tag()-1))
		return e
	}
	if f.authorized != rev.ref() {
		return f.reject(opMigrate, types.ErrUpgradeNotAuthorized, caller)
	}
	f.authorized = ""

	rev.upgrade(st)
	st.Revision = rev.tag()
	st.Logic = rev.ref()
	f.emit(types.Event{Kind: types.EventMigrated, Who: caller, Logic: rev.ref()})
	return nil
}
