package ledger

import (
	"context"

	"github.com/mesh-intelligence/cofund/pkg/types"
)

// refundableLedger is revision 2. It lowers the minimum, tracks the amount
// each identity contributes under revision 2, and adds a refund path gated by
// an administrator toggle and by the goal not yet being met.
type refundableLedger struct{}

func (refundableLedger) tag() types.Revision          { return types.Revision2 }
func (refundableLedger) ref() string                  { return types.LogicRefundableV2 }
func (refundableLedger) minimumFunding() types.Amount { return types.MinimumFundingV2 }

// upgrade enables refunds. Contributors, membership and custody carry over
// untouched, and amounts contributed under revision 1 are not backfilled.
func (refundableLedger) upgrade(st *types.State) {
	st.RefundsEnabled = true
	if st.AmountByContributor == nil {
		st.AmountByContributor = make(map[types.Identity]types.Amount)
	}
}

func (l refundableLedger) contribute(_ context.Context, f *frame, caller types.Identity, value types.Amount) error {
	if err := acceptContribution(f, caller, value, l.minimumFunding()); err != nil {
		return err
	}
	st := f.w.state
	total, err := st.AmountByContributor[caller].Add(value)
	if err != nil {
		return f.reject(opContribute, types.ErrAmountOverflow, caller)
	}
	if st.AmountByContributor == nil {
		st.AmountByContributor = make(map[types.Identity]types.Amount)
	}
	st.AmountByContributor[caller] = total
	f.emit(types.Event{Kind: types.EventContributed, Who: caller, Amount: value})
	return nil
}

func (refundableLedger) refund(ctx context.Context, f *frame, caller types.Identity) (types.Amount, error) {
	st := f.w.state
	if !st.RefundsEnabled {
		return 0, f.reject(opRefund, types.ErrRefundsDisabled, caller)
	}
	if st.GoalMet() {
		e := f.reject(opRefund, types.ErrGoalAlreadyMet, caller)
		e.Have, e.Want = itoa(len(st.Contributors)), "< "+itoa(types.FundingGoal)
		return 0, e
	}
	amount := st.AmountByContributor[caller]
	if amount == 0 {
		return 0, f.reject(opRefund, types.ErrNothingToRefund, caller)
	}

	// Effects before interaction: the recipient may re-enter during transfer
	// and must see a zero balance.
	st.AmountByContributor[caller] = 0

	if err := f.transfer(ctx, caller, amount); err != nil {
		e := f.reject(opRefund, types.ErrTransferFailed, caller)
		e.Err = err
		return 0, e
	}
	f.emit(types.Event{Kind: types.EventRefunded, Who: caller, Amount: amount})
	return amount, nil
}

func (refundableLedger) toggleRefunds(f *frame, caller types.Identity) (bool, error) {
	st := f.w.state
	if caller != st.Administrator {
		return false, f.reject(opToggleRefunds, types.ErrUnauthorized, caller)
	}
	st.RefundsEnabled = !st.RefundsEnabled
	f.emit(types.Event{Kind: types.EventRefundsToggled, Who: caller, Enabled: st.RefundsEnabled})
	return st.RefundsEnabled, nil
}

func (refundableLedger) amountFunded(st *types.State, id types.Identity) (types.Amount, error) {
	return st.AmountByContributor[id], nil
}

func (refundableLedger) refundsEnabled(st *types.State) (bool, error) {
	return st.RefundsEnabled, nil
}
