package ledger

import (
	"context"

	"github.com/mesh-intelligence/cofund/pkg/types"
)

// contributionLedger is revision 1: contributions above MinimumFundingV1,
// unique contributor tracking, goal-gated withdrawal. It has no refund path
// and tracks no per-contributor amounts.
type contributionLedger struct{}

func (contributionLedger) tag() types.Revision          { return types.Revision1 }
func (contributionLedger) ref() string                  { return types.LogicContributionV1 }
func (contributionLedger) minimumFunding() types.Amount { return types.MinimumFundingV1 }

func (l contributionLedger) contribute(_ context.Context, f *frame, caller types.Identity, value types.Amount) error {
	if err := acceptContribution(f, caller, value, l.minimumFunding()); err != nil {
		return err
	}
	f.emit(types.Event{Kind: types.EventContributed, Who: caller, Amount: value})
	return nil
}

func (contributionLedger) refund(_ context.Context, f *frame, caller types.Identity) (types.Amount, error) {
	return 0, f.reject(opRefund, types.ErrNotSupported, caller)
}

func (contributionLedger) toggleRefunds(f *frame, caller types.Identity) (bool, error) {
	return false, f.reject(opToggleRefunds, types.ErrNotSupported, caller)
}

func (contributionLedger) amountFunded(st *types.State, _ types.Identity) (types.Amount, error) {
	return 0, &types.LedgerError{Op: "amount_funded", Kind: types.ErrNotSupported, Revision: st.Revision}
}

func (contributionLedger) refundsEnabled(st *types.State) (bool, error) {
	return false, &types.LedgerError{Op: "refunds_enabled", Kind: types.ErrNotSupported, Revision: st.Revision}
}

// upgrade is never reached: revision 1 is created by initialize, not by a
// migration.
func (contributionLedger) upgrade(*types.State) {}
