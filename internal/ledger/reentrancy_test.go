package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cofund/pkg/types"
)

func TestReentrantRefundSeesZero(t *testing.T) {
	ctx := context.Background()
	l := upgraded(t, "user1")
	require.NoError(t, l.Contribute(ctx, "user1", amt(t, "0.002")))

	var inner error
	calls := 0
	l.RegisterReceiver("user1", types.ReceiverFunc(func(ctx context.Context, _ types.Identity, _ types.Amount, ledger types.Ledger) error {
		calls++
		_, inner = ledger.Refund(ctx, "user1")
		return nil
	}))

	got, err := l.Refund(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, amt(t, "0.002"), got)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, inner, types.ErrNothingToRefund)

	bal, err := l.Balance(ctx)
	require.NoError(t, err)
	assert.Zero(t, bal, "custody paid out exactly once")
}

func TestRejectingReceiverRollsBackRefund(t *testing.T) {
	ctx := context.Background()
	l := upgraded(t, "user1")
	require.NoError(t, l.Contribute(ctx, "user1", amt(t, "0.001")))

	before := l.snapshot(t)
	events := len(l.sink.Events)
	refusal := errors.New("not accepting funds")
	l.RegisterReceiver("user1", types.ReceiverFunc(func(context.Context, types.Identity, types.Amount, types.Ledger) error {
		return refusal
	}))

	_, err := l.Refund(ctx, "user1")
	require.ErrorIs(t, err, types.ErrTransferFailed)
	assert.ErrorIs(t, err, refusal)

	assert.Equal(t, before, l.snapshot(t))
	assert.Len(t, l.sink.Events, events)
	funded, err := l.AmountFunded(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, amt(t, "0.001"), funded)

	l.UnregisterReceiver("user1")
	_, err = l.Refund(ctx, "user1")
	assert.NoError(t, err)
}

func TestRejectingReceiverRollsBackWithdraw(t *testing.T) {
	ctx := context.Background()
	ids := users(types.FundingGoal)
	l := newInitialized(t, ids...)
	for _, id := range ids {
		require.NoError(t, l.Contribute(ctx, id, types.MinimumFundingV1))
	}

	before := l.snapshot(t)
	events := len(l.sink.Events)
	refusal := errors.New("administrator wallet is frozen")
	l.RegisterReceiver(admin, types.ReceiverFunc(func(context.Context, types.Identity, types.Amount, types.Ledger) error {
		return refusal
	}))

	got, err := l.Withdraw(ctx, admin)
	require.ErrorIs(t, err, types.ErrTransferFailed)
	assert.ErrorIs(t, err, refusal)
	assert.Zero(t, got)

	assert.Equal(t, before, l.snapshot(t))
	assert.Len(t, l.sink.Events, events)
	bal, err := l.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.FundingGoal*types.MinimumFundingV1, bal)
	adminBal, err := l.AccountBalance(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, types.Coin, adminBal)

	l.UnregisterReceiver(admin)
	got, err = l.Withdraw(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, types.FundingGoal*types.MinimumFundingV1, got)
}

func TestReentrantWithdrawFindsNothing(t *testing.T) {
	ctx := context.Background()
	ids := users(types.FundingGoal)
	l := newInitialized(t, ids...)
	for _, id := range ids {
		require.NoError(t, l.Contribute(ctx, id, types.MinimumFundingV1))
	}

	var inner error
	l.RegisterReceiver(admin, types.ReceiverFunc(func(ctx context.Context, _ types.Identity, _ types.Amount, ledger types.Ledger) error {
		_, inner = ledger.Withdraw(ctx, admin)
		return nil
	}))

	got, err := l.Withdraw(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, types.MinimumFundingV1*types.FundingGoal, got)
	assert.ErrorIs(t, inner, types.ErrNothingToWithdraw)
	assert.Equal(t, 1, countKind(l.sink.Events, types.EventWithdrawn))
}

func TestNestedCallCommitsWithOuterCall(t *testing.T) {
	ctx := context.Background()
	l := upgraded(t, "user1")
	require.NoError(t, l.Contribute(ctx, "user1", amt(t, "0.001")))

	l.RegisterReceiver("user1", types.ReceiverFunc(func(ctx context.Context, _ types.Identity, _ types.Amount, ledger types.Ledger) error {
		return ledger.Contribute(ctx, "user1", types.MinimumFundingV2)
	}))

	_, err := l.Refund(ctx, "user1")
	require.NoError(t, err)

	funded, err := l.AmountFunded(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, types.MinimumFundingV2, funded)

	kinds := l.sink.Kinds()
	assert.Equal(t, []string{types.EventContributed, types.EventRefunded}, kinds[len(kinds)-2:])
}

func TestReentryDepthIsBounded(t *testing.T) {
	ctx := context.Background()
	l := upgraded(t, "user1")
	require.NoError(t, l.Contribute(ctx, "user1", types.MinimumFundingV2))

	var errs []error
	l.RegisterReceiver("user1", types.ReceiverFunc(func(ctx context.Context, _ types.Identity, _ types.Amount, ledger types.Ledger) error {
		if err := ledger.Contribute(ctx, "user1", types.MinimumFundingV2); err != nil {
			errs = append(errs, err)
			return nil
		}
		if _, err := ledger.Refund(ctx, "user1"); err != nil {
			errs = append(errs, err)
		}
		return nil
	}))

	_, err := l.Refund(ctx, "user1")
	require.NoError(t, err)
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[0], ErrCallDepth)
}

func countKind(events []types.Event, kind string) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
